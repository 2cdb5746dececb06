package reconcile

import (
	"log"
	"sync"

	"github.com/feedwatch/stream-classify-pipeline/internal/track"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

// Reconciler matches returned results back to still-tracked items and
// updates per-item and aggregate state. Results for unknown batches are
// discarded, which makes late and duplicate deliveries idempotent.
type Reconciler struct {
	reg   *track.Registry
	stats *track.Stats

	mu            sync.Mutex
	blocked       map[string]struct{}
	debug         bool
	flagThreshold float64
}

// New creates a reconciler. flagThreshold gates the fixed negative
// label; blocked topics flag unconditionally.
func New(reg *track.Registry, stats *track.Stats, settings pipeline.Settings, flagThreshold float64) *Reconciler {
	r := &Reconciler{
		reg:           reg,
		stats:         stats,
		flagThreshold: flagThreshold,
	}
	r.UpdateSettings(settings)
	return r
}

// UpdateSettings applies a settings change event. It affects future
// reconciliations only, never already-counted items.
func (r *Reconciler) UpdateSettings(s pipeline.Settings) {
	blocked := make(map[string]struct{}, len(s.BlockedTopics))
	for _, t := range s.BlockedTopics {
		blocked[t] = struct{}{}
	}
	r.mu.Lock()
	r.blocked = blocked
	r.debug = s.DebugEnabled
	r.mu.Unlock()
}

// OnResults correlates one batch's results back to its recorded items.
func (r *Reconciler) OnResults(batchID string, results []pipeline.Result) {
	entries, ok := r.reg.Take(batchID)
	if !ok {
		// Already reconciled or abandoned; counting again would
		// double-book the stats.
		log.Printf("[%s] Discarding late or duplicate result delivery", batchID)
		return
	}

	byID := make(map[string]pipeline.Result, len(results))
	for _, res := range results {
		byID[res.ID] = res
	}

	for _, entry := range entries {
		res, found := byID[entry.ID]
		if !found {
			// A missing result resolves that one item as an error; the
			// rest of the batch still reconciles.
			if entry.Origin.Alive() {
				entry.Origin.MarkStatus(pipeline.StatusError)
			}
			r.stats.FinishError()
			continue
		}

		flagged := r.isFlagged(res)
		status := pipeline.StatusSafe
		if flagged {
			status = pipeline.StatusFlagged
		}

		// A detached origin is skipped for UI mutation but still counted.
		if entry.Origin.Alive() {
			entry.Origin.MarkOutcome(status, res.Label, res.Score)
		}

		if flagged {
			r.stats.FinishFlagged()
		} else {
			r.stats.FinishSafe()
		}

		if r.debugEnabled() {
			log.Printf("[%s] item=%s label=%s score=%.3f source=%s flagged=%t",
				batchID, res.ID, res.Label, res.Score, res.Source, flagged)
		}
	}
}

// isFlagged applies the flagging policy: a user-blocked topic label, or
// the fixed negative label at or above the flag threshold.
func (r *Reconciler) isFlagged(res pipeline.Result) bool {
	r.mu.Lock()
	_, blocked := r.blocked[res.Label]
	threshold := r.flagThreshold
	r.mu.Unlock()

	if blocked {
		return true
	}
	return res.Label == pipeline.LabelRagebait && res.Score >= threshold
}

func (r *Reconciler) debugEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.debug
}
