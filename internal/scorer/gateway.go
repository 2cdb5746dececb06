package scorer

import (
	"context"
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/feedwatch/stream-classify-pipeline/internal/classifier"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

// State is the readiness state of the gateway. Transitions are monotonic:
// once a ready state is reached it never regresses, and an initialization
// failure lands in ReadyFallback, never back in Uninitialized.
type State int

const (
	Uninitialized State = iota
	Initializing
	ReadyPrimary
	ReadyFallback
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case ReadyPrimary:
		return "ready-primary"
	case ReadyFallback:
		return "ready-fallback"
	}
	return "unknown"
}

// Loader produces the primary classifier. It runs at most once per
// gateway lifetime; an error is terminal for the session and routes all
// scoring through the fallback.
type Loader func() (classifier.Classifier, error)

// Gateway owns the readiness state machine and routes batches to the
// current classifier variant. It lazily initializes the primary
// classifier and swaps to the heuristic fallback on failure without
// aborting the pipeline.
type Gateway struct {
	mu        sync.Mutex
	state     State
	primary   classifier.Classifier
	fallback  *classifier.Heuristic
	threshold float64

	loader  Loader
	group   singleflight.Group
	readyCh chan struct{}

	scoredC *prometheus.CounterVec
}

// NewGateway creates a gateway in the uninitialized state. threshold is
// the label threshold applied to every score. A nil registerer skips
// prometheus registration.
func NewGateway(loader Loader, threshold float64, reg prometheus.Registerer) *Gateway {
	g := &Gateway{
		state:     Uninitialized,
		fallback:  classifier.NewHeuristic(),
		threshold: threshold,
		loader:    loader,
		readyCh:   make(chan struct{}),
		scoredC: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedwatch_scored_items_total",
			Help: "Items scored, by classifier source",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(g.scoredC)
	}
	return g
}

// State returns the current readiness state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Ready reports whether the gateway reached either ready state.
func (g *Gateway) Ready() bool {
	st := g.State()
	return st == ReadyPrimary || st == ReadyFallback
}

// ReadyC returns a channel closed on the first transition into a ready
// state. Callers blocked on a deferred flush select on it so they proceed
// immediately instead of waiting out their retry delay.
func (g *Gateway) ReadyC() <-chan struct{} {
	return g.readyCh
}

// EnsureReady drives initialization. It is idempotent and safe to call
// concurrently: all callers before readiness await the same in-flight
// attempt. It always resolves to a ready state.
func (g *Gateway) EnsureReady(ctx context.Context) error {
	if g.Ready() {
		return nil
	}

	ch := g.group.DoChan("init", func() (interface{}, error) {
		g.initialize()
		return nil, nil
	})

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) initialize() {
	g.mu.Lock()
	if g.state != Uninitialized {
		g.mu.Unlock()
		return
	}
	g.state = Initializing
	g.mu.Unlock()

	primary, err := g.loader()

	g.mu.Lock()
	if err != nil {
		// Permanent fallback for the rest of the session: logged, never
		// retried, never fatal.
		g.state = ReadyFallback
		log.Printf("Classifier initialization failed, falling back to heuristic: %v", err)
	} else {
		g.state = ReadyPrimary
		g.primary = primary
		log.Printf("✓ Classifier ready: %s", primary.Name())
	}
	g.mu.Unlock()

	close(g.readyCh)
}

// Classify scores every item in the batch, returning exactly one result
// per input item in input order. A per-item failure of the primary
// classifier degrades that single item to the fallback; one bad input
// never poisons the batch.
func (g *Gateway) Classify(ctx context.Context, batch pipeline.Batch) ([]pipeline.Result, error) {
	if err := g.EnsureReady(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	state := g.state
	primary := g.primary
	g.mu.Unlock()

	results := make([]pipeline.Result, 0, len(batch.Items))
	for _, item := range batch.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, g.scoreItem(state, primary, item))
	}
	return results, nil
}

func (g *Gateway) scoreItem(state State, primary classifier.Classifier, item pipeline.Item) pipeline.Result {
	source := pipeline.SourceFallback
	var score float64
	var err error

	if state == ReadyPrimary {
		score, err = primary.Score(item.Text)
		if err == nil {
			source = pipeline.SourcePrimary
		} else {
			log.Printf("Primary scoring failed for item %s, rescoring with fallback: %v", item.ID, err)
		}
	}
	if source == pipeline.SourceFallback {
		score, _ = g.fallback.Score(item.Text)
	}

	g.scoredC.WithLabelValues(source).Inc()

	return pipeline.Result{
		ID:     item.ID,
		Label:  classifier.Label(score, g.threshold),
		Score:  score,
		Source: source,
	}
}
