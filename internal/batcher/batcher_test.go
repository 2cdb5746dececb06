package batcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/feedwatch/stream-classify-pipeline/internal/channel"
	"github.com/feedwatch/stream-classify-pipeline/internal/track"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

type fakeGate struct {
	mu    sync.Mutex
	ready bool
	ch    chan struct{}
}

func newFakeGate(ready bool) *fakeGate {
	g := &fakeGate{ready: ready, ch: make(chan struct{})}
	if ready {
		close(g.ch)
	}
	return g
}

func (g *fakeGate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

func (g *fakeGate) ReadyC() <-chan struct{} { return g.ch }

func (g *fakeGate) becomeReady() {
	g.mu.Lock()
	g.ready = true
	g.mu.Unlock()
	close(g.ch)
}

type fakeChannel struct {
	mu      sync.Mutex
	batches []pipeline.Batch
	fail    bool
}

func (c *fakeChannel) Init(context.Context) (bool, error) { return true, nil }

func (c *fakeChannel) Classify(_ context.Context, batch pipeline.Batch) ([]pipeline.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, channel.ErrUnreachable
	}
	c.batches = append(c.batches, batch)
	results := make([]pipeline.Result, len(batch.Items))
	for i, item := range batch.Items {
		results[i] = pipeline.Result{ID: item.ID, Label: pipeline.LabelSafe, Score: 0.1, Source: pipeline.SourceFallback}
	}
	return results, nil
}

func (c *fakeChannel) Close() error { return nil }

func (c *fakeChannel) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

type resultSink struct {
	mu        sync.Mutex
	delivered map[string][]pipeline.Result
}

func newResultSink() *resultSink {
	return &resultSink{delivered: make(map[string][]pipeline.Result)}
}

func (s *resultSink) onResults(batchID string, results []pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered[batchID] = results
}

func (s *resultSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func candidate(i int) track.Candidate {
	return track.Candidate{
		ID:     fmt.Sprintf("item-%d", i),
		Text:   fmt.Sprintf("candidate text number %d with enough length", i),
		Origin: nopOrigin{},
	}
}

type nopOrigin struct{}

func (nopOrigin) Alive() bool                         { return true }
func (nopOrigin) MarkStatus(string)                   {}
func (nopOrigin) MarkOutcome(string, string, float64) {}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSizeThresholdFlushesImmediately(t *testing.T) {
	ch := &fakeChannel{}
	sink := newResultSink()
	reg := track.NewRegistry()
	b := New(Config{BatchSize: 5, Debounce: time.Hour, RetryDelay: time.Hour}, newFakeGate(true), ch, reg, sink.onResults)
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Enqueue(candidate(i))
	}

	waitFor(t, time.Second, func() bool { return ch.batchCount() == 1 })
	ch.mu.Lock()
	got := len(ch.batches[0].Items)
	ch.mu.Unlock()
	if got != 5 {
		t.Fatalf("batch size = %d, want 5", got)
	}
	if b.PendingLen() != 0 {
		t.Fatalf("pending not cleared: %d", b.PendingLen())
	}
}

func TestDebounceFlushesSingleItem(t *testing.T) {
	ch := &fakeChannel{}
	sink := newResultSink()
	b := New(Config{BatchSize: 5, Debounce: 30 * time.Millisecond, RetryDelay: time.Hour}, newFakeGate(true), ch, track.NewRegistry(), sink.onResults)
	defer b.Close()

	b.Enqueue(candidate(0))

	waitFor(t, time.Second, func() bool { return ch.batchCount() == 1 })
	ch.mu.Lock()
	got := len(ch.batches[0].Items)
	ch.mu.Unlock()
	if got != 1 {
		t.Fatalf("batch size = %d, want 1", got)
	}
}

func TestDebounceRestartsOnEnqueue(t *testing.T) {
	ch := &fakeChannel{}
	sink := newResultSink()
	b := New(Config{BatchSize: 10, Debounce: 200 * time.Millisecond, RetryDelay: time.Hour}, newFakeGate(true), ch, track.NewRegistry(), sink.onResults)
	defer b.Close()

	// Keep enqueuing faster than the debounce; nothing should flush yet.
	for i := 0; i < 4; i++ {
		b.Enqueue(candidate(i))
		time.Sleep(40 * time.Millisecond)
	}
	if n := ch.batchCount(); n != 0 {
		t.Fatalf("flushed %d batches during rapid enqueues", n)
	}

	waitFor(t, time.Second, func() bool { return ch.batchCount() == 1 })
	ch.mu.Lock()
	got := len(ch.batches[0].Items)
	ch.mu.Unlock()
	if got != 4 {
		t.Fatalf("batch size = %d, want 4", got)
	}
}

func TestDeferredFlushKeepsPendingUntilReady(t *testing.T) {
	ch := &fakeChannel{}
	sink := newResultSink()
	gate := newFakeGate(false)
	b := New(Config{BatchSize: 2, Debounce: 10 * time.Millisecond, RetryDelay: time.Hour}, gate, ch, track.NewRegistry(), sink.onResults)
	defer b.Close()

	b.Enqueue(candidate(0))
	b.Enqueue(candidate(1))

	time.Sleep(50 * time.Millisecond)
	if n := ch.batchCount(); n != 0 {
		t.Fatalf("dispatched %d batches before readiness", n)
	}
	if b.PendingLen() != 2 {
		t.Fatalf("pending lost while waiting: %d", b.PendingLen())
	}

	// The ready broadcast must unblock the deferred flush well before the
	// one-hour retry delay.
	gate.becomeReady()
	waitFor(t, time.Second, func() bool { return ch.batchCount() == 1 })
	ch.mu.Lock()
	got := len(ch.batches[0].Items)
	ch.mu.Unlock()
	if got != 2 {
		t.Fatalf("batch size = %d, want 2", got)
	}
}

func TestEmptyFlushIsNoOp(t *testing.T) {
	ch := &fakeChannel{}
	sink := newResultSink()
	b := New(Config{}, newFakeGate(true), ch, track.NewRegistry(), sink.onResults)
	defer b.Close()

	b.Flush()
	time.Sleep(20 * time.Millisecond)
	if n := ch.batchCount(); n != 0 {
		t.Fatalf("empty flush dispatched %d batches", n)
	}
}

func TestRejectedDispatchAbandonsBatch(t *testing.T) {
	ch := &fakeChannel{fail: true}
	sink := newResultSink()
	reg := track.NewRegistry()
	b := New(Config{BatchSize: 1, Debounce: time.Hour, RetryDelay: time.Hour}, newFakeGate(true), ch, reg, sink.onResults)

	b.Enqueue(candidate(0))
	b.Close() // waits for the in-flight dispatch

	if sink.count() != 0 {
		t.Fatal("rejected dispatch must not deliver results")
	}
	if reg.Len() != 0 {
		t.Fatalf("registry entry not abandoned: %d in flight", reg.Len())
	}
}

func TestResultsReachSink(t *testing.T) {
	ch := &fakeChannel{}
	sink := newResultSink()
	b := New(Config{BatchSize: 3, Debounce: time.Hour, RetryDelay: time.Hour}, newFakeGate(true), ch, track.NewRegistry(), sink.onResults)

	for i := 0; i < 3; i++ {
		b.Enqueue(candidate(i))
	}
	b.Close()

	if sink.count() != 1 {
		t.Fatalf("delivered %d result sets, want 1", sink.count())
	}
}
