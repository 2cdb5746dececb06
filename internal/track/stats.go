package track

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

// Stats holds the aggregate counters for the detecting context. The
// counters are derived strictly from observation and reconciliation
// events and are mirrored to prometheus collectors.
type Stats struct {
	mu         sync.Mutex
	total      int64
	flagged    int64
	safe       int64
	errors     int64
	processing int64

	totalC      prometheus.Counter
	flaggedC    prometheus.Counter
	safeC       prometheus.Counter
	errorsC     prometheus.Counter
	processingG prometheus.Gauge
}

// NewStats creates the aggregate counters and registers their collectors.
// A nil registerer skips prometheus registration (library and test use).
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		totalC: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedwatch_items_total",
			Help: "Items reconciled, regardless of outcome",
		}),
		flaggedC: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedwatch_items_flagged_total",
			Help: "Items flagged by the classification policy",
		}),
		safeC: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedwatch_items_safe_total",
			Help: "Items classified safe",
		}),
		errorsC: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedwatch_items_error_total",
			Help: "Items whose batch returned no matching result",
		}),
		processingG: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feedwatch_items_processing",
			Help: "Items detected but not yet reconciled",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.totalC, s.flaggedC, s.safeC, s.errorsC, s.processingG)
	}
	return s
}

// StartProcessing records a newly detected item before dispatch, so there
// is no gap between detection and classification in the visible state.
func (s *Stats) StartProcessing() {
	s.mu.Lock()
	s.processing++
	s.mu.Unlock()
	s.processingG.Inc()
}

// FinishFlagged resolves one processing item as flagged.
func (s *Stats) FinishFlagged() { s.finish(&s.flagged, s.flaggedC) }

// FinishSafe resolves one processing item as safe.
func (s *Stats) FinishSafe() { s.finish(&s.safe, s.safeC) }

// FinishError resolves one processing item whose result never arrived.
func (s *Stats) FinishError() { s.finish(&s.errors, s.errorsC) }

func (s *Stats) finish(outcome *int64, c prometheus.Counter) {
	s.mu.Lock()
	s.processing--
	s.total++
	*outcome++
	s.mu.Unlock()
	s.processingG.Dec()
	s.totalC.Inc()
	c.Inc()
}

// Snapshot returns a point-in-time copy of the counters.
func (s *Stats) Snapshot() pipeline.StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pipeline.StatsSnapshot{
		Total:      s.total,
		Flagged:    s.flagged,
		Safe:       s.safe,
		Errors:     s.errors,
		Processing: s.processing,
	}
}
