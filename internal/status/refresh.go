package status

import (
	"log/slog"
	"sync/atomic"

	"github.com/thiagokokada/branchlens/internal/metrics"
)

// RefreshTrigger forwards refresh requests to the view while decorations are
// shown. When they are hidden the request is dropped; the cache keeps filling.
type RefreshTrigger struct {
	sink    Sink
	shown   atomic.Bool
	metrics *metrics.Metrics
}

func NewRefreshTrigger(sink Sink, shown bool, m *metrics.Metrics) *RefreshTrigger {
	r := &RefreshTrigger{sink: sink, metrics: m}
	r.shown.Store(shown)
	return r
}

func (r *RefreshTrigger) SetDecorationsShown(shown bool) {
	r.shown.Store(shown)
}

func (r *RefreshTrigger) DecorationsShown() bool {
	return r.shown.Load()
}

// Fire reports whether the sink was notified.
func (r *RefreshTrigger) Fire(seq uint64) bool {
	if !r.shown.Load() {
		slog.Debug("view refresh ignored, decorations disabled", slog.Uint64("seq", seq))
		r.metrics.Refresh("skipped")
		return false
	}
	if r.sink == nil {
		return false
	}
	slog.Debug("requesting view refresh", slog.Uint64("seq", seq))
	r.metrics.Refresh("delivered")
	r.sink.Refresh()
	return true
}
