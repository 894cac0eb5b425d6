// Package session ties the status engine, its cache and the view together for
// one open workspace, and turns change notifications into evictions.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thiagokokada/branchlens/internal/metrics"
	"github.com/thiagokokada/branchlens/internal/status"
)

// VersionFilter reports which files are under version control. An oracle
// that implements it lets FilesUpdated notice newly versioned files.
type VersionFilter interface {
	Versioned(ctx context.Context, files []status.FileID) ([]status.FileID, error)
}

type Config struct {
	// Owner identifies the session; a random one is generated when empty.
	Owner            status.Owner
	DecorationsShown bool
	PollTimeout      time.Duration
	Executor         status.Executor
	Metrics          *metrics.Metrics
}

type Manager struct {
	owner   status.Owner
	cache   *status.Cache
	refresh *status.RefreshTrigger
	engine  *status.Engine
	sink    status.Sink
	filter  VersionFilter
	metrics *metrics.Metrics

	mu  sync.Mutex
	ctx context.Context
}

func New(oracle status.Oracle, sink status.Sink, cfg Config) *Manager {
	owner := cfg.Owner
	if owner == "" {
		owner = status.Owner(uuid.NewString())
	}
	cache := status.NewCache()
	refresh := status.NewRefreshTrigger(sink, cfg.DecorationsShown, cfg.Metrics)
	m := &Manager{
		owner:   owner,
		cache:   cache,
		refresh: refresh,
		sink:    sink,
		metrics: cfg.Metrics,
		ctx:     context.Background(),
		engine: status.NewEngine(oracle, cache, refresh, status.EngineConfig{
			PollTimeout: cfg.PollTimeout,
			Executor:    cfg.Executor,
			Metrics:     cfg.Metrics,
		}),
	}
	if f, ok := oracle.(VersionFilter); ok {
		m.filter = f
	}
	return m
}

func (m *Manager) Owner() status.Owner { return m.owner }
func (m *Manager) Cache() *status.Cache { return m.cache }
func (m *Manager) Engine() *status.Engine { return m.engine }
func (m *Manager) DecorationsShown() bool { return m.refresh.DecorationsShown() }
func (m *Manager) Trigger() *status.RefreshTrigger { return m.refresh }

func (m *Manager) Init(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
	m.engine.Init(ctx)
	slog.Debug("session opened", slog.String("owner", string(m.owner)), slog.Uint64("seq", m.cache.Seq()))
}

func (m *Manager) sessionContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

// Decoration returns the cached status of path. On a miss it schedules a
// lookup and returns false; the view is refreshed once the lookup lands.
func (m *Manager) Decoration(path string) (status.Status, bool) {
	file := status.NewFileID(path)
	if s, ok := m.cache.Get(file); ok {
		return s, true
	}
	m.engine.Schedule(m.owner, file)
	return status.Status{}, false
}

func (m *Manager) Schedule(path string) status.ScheduleResult {
	return m.engine.Schedule(m.owner, status.NewFileID(path))
}

// FilesUpdated handles an external update of paths, e.g. a pull or checkout.
// The view is refreshed when a cached status was dropped or when one of the
// paths is versioned and might now need a decoration.
func (m *Manager) FilesUpdated(paths []string) {
	if len(paths) == 0 {
		return
	}
	files := make([]status.FileID, 0, len(paths))
	for _, p := range paths {
		files = append(files, status.NewFileID(p))
	}
	seq := m.cache.Seq()
	slog.Debug("updated paths", slog.Uint64("seq", seq), slog.Int("count", len(files)))

	evicted := m.evictAll(files)
	versioned := false
	if m.filter != nil {
		under, err := m.filter.Versioned(m.sessionContext(), files)
		if err != nil {
			slog.Warn("versioned file check failed", slog.Uint64("seq", seq), slog.Any("error", err))
		}
		versioned = len(under) > 0
	}
	if evicted || versioned {
		slog.Debug("requesting view refresh",
			slog.Uint64("seq", seq),
			slog.Bool("evicted", evicted),
			slog.Bool("versioned", versioned),
		)
		m.refresh.Fire(seq)
	}
}

func (m *Manager) evictAll(files []status.FileID) bool {
	before := m.cache.Len()
	if !m.cache.EvictAll(files) {
		return false
	}
	m.metrics.Evicted("updated", before-m.cache.Len())
	return true
}

// BeforeDelete drops path from the cache and withdraws a pending lookup.
func (m *Manager) BeforeDelete(path string) bool {
	return m.forget(path, "deleted")
}

// BeforeMove drops the status of the old location of a moved file.
func (m *Manager) BeforeMove(path string) bool {
	return m.forget(path, "moved")
}

func (m *Manager) forget(path, reason string) bool {
	file := status.NewFileID(path)
	slog.Debug("file "+reason, slog.Uint64("seq", m.cache.Seq()), slog.String("file", file.String()))
	evicted := m.cache.Evict(file)
	if evicted {
		m.metrics.Evicted(reason, 1)
	}
	m.engine.Cancel(file)
	return evicted
}

// BranchesChanged handles HEAD moving in the working copy at root: every
// cached status below it is stale.
func (m *Manager) BranchesChanged(root string) {
	rootID := status.NewFileID(root)
	seq := m.cache.Seq()
	before := m.cache.Len()
	if m.cache.EvictUnder(rootID) {
		m.metrics.Evicted("branch_changed", before-m.cache.Len())
	}
	slog.Debug("branches changed", slog.Uint64("seq", seq), slog.String("root", rootID.String()))
	m.refresh.Fire(seq)
}

// DecorationsToggled applies the setting and always redraws, so hiding
// decorations takes effect right away.
func (m *Manager) DecorationsToggled(show bool) {
	m.refresh.SetDecorationsShown(show)
	slog.Debug("decorations toggled", slog.Bool("show", show), slog.Uint64("seq", m.cache.Seq()))
	if m.sink != nil {
		m.sink.Refresh()
	}
}

// Close ends the session: queued work is dropped and the cache emptied.
func (m *Manager) Close() {
	m.engine.Close()
	m.cache.Dispose()
	slog.Debug("session closed", slog.String("owner", string(m.owner)))
}

func (m *Manager) Dispose() {
	m.engine.Dispose()
	m.cache.Dispose()
}
