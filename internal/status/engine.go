package status

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thiagokokada/branchlens/internal/metrics"
)

const DefaultPollTimeout = 70 * time.Millisecond

// ScheduleResult tells a producer what Schedule did with its request.
type ScheduleResult uint8

const (
	Rejected ScheduleResult = iota
	AlreadyQueued
	Queued
)

func (r ScheduleResult) String() string {
	switch r {
	case Rejected:
		return "rejected"
	case AlreadyQueued:
		return "already_queued"
	case Queued:
		return "queued"
	default:
		return fmt.Sprintf("ScheduleResult(%d)", uint8(r))
	}
}

type EngineConfig struct {
	// PollTimeout bounds how long an idle worker waits for a request before
	// it declares the queue exhausted. Defaults to DefaultPollTimeout.
	PollTimeout time.Duration
	// Executor defaults to GoExecutor.
	Executor Executor
	Metrics  *metrics.Metrics
}

// Engine admits status requests, deduplicates them and drains them one at a
// time on a single background worker.
type Engine struct {
	oracle  Oracle
	cache   *Cache
	refresh *RefreshTrigger
	cfg     EngineConfig

	queue      *admission
	active     atomic.Bool
	inProgress atomic.Bool

	// mu guards ctx, the session context handed to the oracle.
	mu  sync.Mutex
	ctx context.Context
}

func NewEngine(oracle Oracle, cache *Cache, refresh *RefreshTrigger, cfg EngineConfig) *Engine {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.Executor == nil {
		cfg.Executor = GoExecutor
	}
	return &Engine{
		oracle:  oracle,
		cache:   cache,
		refresh: refresh,
		cfg:     cfg,
		queue:   newAdmission(),
		ctx:     context.Background(),
	}
}

// Init activates the engine. ctx is passed to every oracle call; closing the
// engine does not cancel it, so a lookup in flight runs to completion.
func (e *Engine) Init(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
	if e.active.CompareAndSwap(false, true) {
		slog.Debug("status engine active", slog.Uint64("seq", e.cache.Seq()))
	}
}

func (e *Engine) Active() bool { return e.active.Load() }

// Running reports whether a drain is in progress.
func (e *Engine) Running() bool { return e.inProgress.Load() }

// QueueLen returns the number of requests waiting for the worker.
func (e *Engine) QueueLen() int { return e.queue.len() }

// Pending returns the files currently awaiting calculation, in no order.
func (e *Engine) Pending() []FileID { return e.queue.pendingFiles() }

// Schedule admits file for background resolution. It never blocks on the
// oracle and never fails loudly: after Close it is a no-op.
func (e *Engine) Schedule(owner Owner, file FileID) ScheduleResult {
	if !e.active.Load() {
		e.cfg.Metrics.Scheduled(Rejected.String(), e.queue.len())
		return Rejected
	}
	queued, depth := e.queue.add(Request{Owner: owner, File: file}, e.active.Load)
	if !queued {
		if !e.active.Load() {
			e.cfg.Metrics.Scheduled(Rejected.String(), 0)
			return Rejected
		}
		slog.Debug("file already awaits calculation",
			slog.Uint64("seq", e.cache.Seq()),
			slog.String("file", file.String()),
		)
		e.cfg.Metrics.Scheduled(AlreadyQueued.String(), depth)
		return AlreadyQueued
	}
	slog.Debug("queued status request",
		slog.Uint64("seq", e.cache.Seq()),
		slog.String("file", file.String()),
		slog.Int("pending", depth),
	)
	e.cfg.Metrics.Scheduled(Queued.String(), depth)
	e.activate()
	return Queued
}

// Cancel withdraws a pending file. Its request stays queued and is skipped
// when the worker reaches it.
func (e *Engine) Cancel(file FileID) bool {
	return e.queue.forget(file)
}

// activate starts a drain unless one is already running.
func (e *Engine) activate() {
	if !e.active.Load() {
		slog.Debug("engine inactive, status calculation cancelled", slog.Uint64("seq", e.cache.Seq()))
		return
	}
	if !e.inProgress.CompareAndSwap(false, true) {
		slog.Debug("another status calculation in progress", slog.Uint64("seq", e.cache.Seq()))
		return
	}
	e.cfg.Executor(e.drain)
}

// drain processes one request per iteration until the queue stays empty for
// PollTimeout, then asks the view for a single refresh.
func (e *Engine) drain() {
	for {
		if !e.active.Load() {
			e.inProgress.Store(false)
			slog.Debug("engine inactive, drain stopped", slog.Uint64("seq", e.cache.Seq()))
			return
		}
		req, pending, ok := e.queue.poll(e.cfg.PollTimeout)
		if !ok {
			e.inProgress.Store(false)
			if !e.active.Load() {
				return
			}
			seq := e.cache.Seq()
			slog.Debug("requests exhausted", slog.Uint64("seq", seq))
			e.refresh.Fire(seq)
			// A producer may have enqueued after the poll gave up but before
			// inProgress was cleared; its activation was a no-op.
			if e.queue.len() > 0 {
				e.activate()
			}
			return
		}
		e.cfg.Metrics.Dequeued(e.queue.len())
		e.process(req, pending)
		if e.active.Load() {
			slog.Debug("scheduling next status calculation",
				slog.Uint64("seq", e.cache.Seq()),
				slog.Int("pending", e.queue.len()),
			)
		}
	}
}

func (e *Engine) process(req Request, pending bool) {
	seq := e.cache.Seq()
	if !pending {
		slog.Debug("request no longer pending, skipped",
			slog.Uint64("seq", seq),
			slog.String("file", req.File.String()),
		)
		return
	}
	start := time.Now()
	st, err := e.resolve(req)
	elapsed := time.Since(start)
	if err != nil {
		e.cfg.Metrics.OracleCall("error", elapsed)
		slog.Warn("status calculation failed",
			slog.Uint64("seq", seq),
			slog.String("file", req.File.String()),
			slog.Any("error", err),
		)
		return
	}
	outcome := "branch"
	if st.IsEmpty() {
		outcome = "empty"
	}
	e.cfg.Metrics.OracleCall(outcome, elapsed)
	if !e.active.Load() {
		slog.Debug("engine closed during calculation, result dropped",
			slog.Uint64("seq", seq),
			slog.String("file", req.File.String()),
		)
		return
	}
	e.cache.Put(req.File, st)
	slog.Debug("status calculated",
		slog.Uint64("seq", seq),
		slog.String("file", req.File.String()),
		slog.String("branch", st.String()),
		slog.Duration("elapsed", elapsed),
	)
}

func (e *Engine) resolve(req Request) (st Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("oracle panic: %v", r)
		}
	}()
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	return e.oracle.Resolve(ctx, req.Owner, req.File)
}

// Close deactivates the engine and drops every queued request. A lookup
// already running finishes, but nothing is rescheduled afterwards.
func (e *Engine) Close() {
	if !e.active.CompareAndSwap(true, false) {
		return
	}
	pending, requests := e.queue.clear()
	e.cfg.Metrics.Dequeued(0)
	slog.Debug("status engine closed",
		slog.Uint64("seq", e.cache.Seq()),
		slog.Int("pending_files", pending),
		slog.Int("requests", requests),
	)
}

// Dispose clears queued state whether or not the engine is still active.
func (e *Engine) Dispose() {
	e.active.Store(false)
	pending, requests := e.queue.clear()
	e.cfg.Metrics.Dequeued(0)
	slog.Debug("status engine disposed",
		slog.Uint64("seq", e.cache.Seq()),
		slog.Int("pending_files", pending),
		slog.Int("requests", requests),
	)
}
