package batcher

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feedwatch/stream-classify-pipeline/internal/channel"
	"github.com/feedwatch/stream-classify-pipeline/internal/track"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

// ResultsFunc receives the results of a successfully dispatched batch.
type ResultsFunc func(batchID string, results []pipeline.Result)

// Config holds the batching parameters.
type Config struct {
	// BatchSize triggers an immediate flush when pending reaches it
	BatchSize int

	// Debounce flushes after this much quiet time since the last enqueue
	Debounce time.Duration

	// RetryDelay bounds how long a deferred flush waits for readiness
	// before re-checking
	RetryDelay time.Duration
}

// Batcher accumulates pending candidates and flushes them as batches:
// on a size threshold, or after a debounce interval with no further
// enqueues. A flush while the scorer is not ready defers without
// clearing pending, so nothing is lost while the classifier initializes.
type Batcher struct {
	cfg       Config
	gate      channel.Gate
	ch        channel.Channel
	reg       *track.Registry
	onResults ResultsFunc

	mu       sync.Mutex
	pending  []track.Candidate
	debounce *time.Timer
	waiting  bool
	closed   bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a batcher. Dispatched batches go out over ch; results are
// delivered to onResults. The registry is populated at flush time, before
// dispatch.
func New(cfg Config, gate channel.Gate, ch channel.Channel, reg *track.Registry, onResults ResultsFunc) *Batcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Batcher{
		cfg:       cfg,
		gate:      gate,
		ch:        ch,
		reg:       reg,
		onResults: onResults,
		done:      make(chan struct{}),
	}
}

// Enqueue adds a candidate to the pending set. The caller (the observer)
// guarantees the origin has not been enqueued before.
func (b *Batcher) Enqueue(c track.Candidate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.pending = append(b.pending, c)

	if len(b.pending) >= b.cfg.BatchSize {
		b.stopDebounceLocked()
		b.flushLocked()
		return
	}

	// Restart the debounce clock on every enqueue.
	b.stopDebounceLocked()
	b.debounce = time.AfterFunc(b.cfg.Debounce, b.Flush)
}

// Flush attempts to flush the pending set. No-op when pending is empty.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if len(b.pending) == 0 {
		return
	}

	if !b.gate.Ready() {
		b.deferFlushLocked()
		return
	}

	batchID := uuid.New().String()

	items := make([]pipeline.Item, len(b.pending))
	entries := make([]track.Entry, len(b.pending))
	for i, c := range b.pending {
		items[i] = pipeline.Item{ID: c.ID, Text: c.Text}
		entries[i] = track.Entry{ID: c.ID, Origin: c.Origin}
	}
	b.pending = b.pending[:0]

	b.reg.Add(batchID, entries)

	batch := pipeline.Batch{ID: batchID, Items: items}
	b.wg.Add(1)
	go b.dispatch(batch)
}

// deferFlushLocked parks one waiter that retries the flush once the
// scorer broadcasts readiness or the retry delay elapses, whichever
// comes first. Pending items are kept.
func (b *Batcher) deferFlushLocked() {
	if b.waiting {
		return
	}
	b.waiting = true

	go func() {
		select {
		case <-b.gate.ReadyC():
		case <-time.After(b.cfg.RetryDelay):
		case <-b.done:
			return
		}
		b.mu.Lock()
		b.waiting = false
		if !b.closed {
			b.flushLocked()
		}
		b.mu.Unlock()
	}()
}

// dispatch performs the at-most-once delivery of one batch. A rejected
// dispatch abandons the registry entry; the affected items stay in
// processing state and are never retried.
func (b *Batcher) dispatch(batch pipeline.Batch) {
	defer b.wg.Done()

	results, err := b.ch.Classify(context.Background(), batch)
	if err != nil {
		log.Printf("[%s] Dispatch rejected, abandoning batch of %d: %v", batch.ID, len(batch.Items), err)
		b.reg.Abandon(batch.ID)
		return
	}
	b.onResults(batch.ID, results)
}

// PendingLen returns the current pending count.
func (b *Batcher) PendingLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Batcher) stopDebounceLocked() {
	if b.debounce != nil {
		b.debounce.Stop()
		b.debounce = nil
	}
}

// Close stops timers and waits for in-flight dispatches to settle.
func (b *Batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.stopDebounceLocked()
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
}
