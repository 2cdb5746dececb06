package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/feedwatch/stream-classify-pipeline/internal/batcher"
	"github.com/feedwatch/stream-classify-pipeline/internal/channel"
	"github.com/feedwatch/stream-classify-pipeline/internal/classifier"
	"github.com/feedwatch/stream-classify-pipeline/internal/observer"
	"github.com/feedwatch/stream-classify-pipeline/internal/reconcile"
	"github.com/feedwatch/stream-classify-pipeline/internal/scorer"
	"github.com/feedwatch/stream-classify-pipeline/internal/track"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

// Threshold defaults applied when the Config fields are zero.
const (
	DefaultLabelThreshold = 0.7
	DefaultFlagThreshold  = 0.7
)

// Config holds the configuration for assembling the detecting-context
// pipeline. Every field is optional; the zero value yields a working
// embedded pipeline with the default thresholds and selectors.
type Config struct {
	// ScorerWSURL is the scorer worker's websocket channel endpoint
	// Empty embeds a scorer in-process behind a loopback channel
	ScorerWSURL string

	// ModelPath is the primary classifier weights file (embedded mode)
	// Missing file falls back to the heuristic scorer
	ModelPath string

	// BatchSize, Debounce, RetryDelay tune the batcher
	BatchSize  int
	Debounce   time.Duration
	RetryDelay time.Duration

	// LabelThreshold converts scores to labels (embedded mode)
	// Defaults to 0.7
	LabelThreshold float64

	// FlagThreshold gates flagging of the fixed negative label
	// Defaults to 0.7
	FlagThreshold float64

	// BlockedTopics flag unconditionally when a label matches
	BlockedTopics []string

	// DebugEnabled turns on per-item reconciliation logging
	DebugEnabled bool

	// CandidateSelector, TextSelector, NoiseSelector override the
	// detection and extraction selectors
	CandidateSelector string
	TextSelector      string
	NoiseSelector     string

	// MinTextLen, MaxTextLen bound the extracted text
	MinTextLen int
	MaxTextLen int

	// Registerer receives the pipeline's prometheus collectors
	// Optional. Nil skips metrics registration
	Registerer prometheus.Registerer
}

// Pipeline is the assembled detecting context: observer, batcher,
// dispatch channel, and reconciler sharing one registry and one stats
// object. Created at process start; reset only by restarting.
type Pipeline struct {
	Observer   *observer.Observer
	Batcher    *batcher.Batcher
	Reconciler *reconcile.Reconciler
	Stats      *track.Stats
	Registry   *track.Registry

	ch channel.Channel
}

// New assembles a pipeline. With ScorerWSURL set it dials the remote
// scoring context over the websocket channel; otherwise it embeds a
// gateway in-process behind a loopback channel. Either way the scorer is
// initialized lazily in the background and flushes defer until it is
// ready.
func New(cfg Config) (*Pipeline, error) {
	if cfg.LabelThreshold <= 0 {
		cfg.LabelThreshold = DefaultLabelThreshold
	}
	if cfg.FlagThreshold <= 0 {
		cfg.FlagThreshold = DefaultFlagThreshold
	}

	stats := track.NewStats(cfg.Registerer)
	registry := track.NewRegistry()

	var ch channel.Channel
	var gate channel.Gate

	if cfg.ScorerWSURL != "" {
		log.Printf("Using remote scorer at: %s", cfg.ScorerWSURL)
		ws, err := channel.DialWebSocket(context.Background(), cfg.ScorerWSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial scorer: %w", err)
		}
		ch = ws
		gate = ws.Gate()
	} else {
		log.Printf("Using embedded scorer (loopback channel)")
		modelPath := cfg.ModelPath
		gw := scorer.NewGateway(func() (classifier.Classifier, error) {
			return classifier.NewLinear(modelPath)
		}, cfg.LabelThreshold, cfg.Registerer)
		lb := channel.NewLoopback(gw)
		ch = lb
		gate = lb.Gate()
	}

	reconciler := reconcile.New(registry, stats, pipeline.Settings{
		DebugEnabled:  cfg.DebugEnabled,
		BlockedTopics: cfg.BlockedTopics,
	}, cfg.FlagThreshold)

	b := batcher.New(batcher.Config{
		BatchSize:  cfg.BatchSize,
		Debounce:   cfg.Debounce,
		RetryDelay: cfg.RetryDelay,
	}, gate, ch, registry, reconciler.OnResults)

	obs := observer.New(observer.Config{
		CandidateSelector: cfg.CandidateSelector,
		TextSelector:      cfg.TextSelector,
		NoiseSelector:     cfg.NoiseSelector,
		MinTextLen:        cfg.MinTextLen,
		MaxTextLen:        cfg.MaxTextLen,
	}, b, stats)

	p := &Pipeline{
		Observer:   obs,
		Batcher:    b,
		Reconciler: reconciler,
		Stats:      stats,
		Registry:   registry,
		ch:         ch,
	}

	// Kick off scorer initialization without blocking detection. A
	// failure here is not fatal: flushes keep deferring until the scorer
	// resolves to primary or fallback.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if ready, err := ch.Init(ctx); err != nil {
			log.Printf("Scorer init request failed: %v", err)
		} else {
			log.Printf("✓ Scorer initialized (ready=%t)", ready)
		}
	}()

	return p, nil
}

// Shutdown stops the batcher and closes the dispatch channel. In-flight
// batches settle or are abandoned; pending items are not drained.
func (p *Pipeline) Shutdown() {
	p.Batcher.Close()
	if err := p.ch.Close(); err != nil {
		log.Printf("Channel close failed: %v", err)
	}
}
