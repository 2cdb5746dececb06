package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/feedwatch/stream-classify-pipeline/internal/classifier"
	"github.com/feedwatch/stream-classify-pipeline/internal/scorer"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

func newFallbackGateway() *scorer.Gateway {
	return scorer.NewGateway(func() (classifier.Classifier, error) {
		return nil, errors.New("no model in tests")
	}, 0.7, nil)
}

func TestLoopbackRoundTrip(t *testing.T) {
	lb := NewLoopback(newFallbackGateway())

	ready, err := lb.Init(context.Background())
	if err != nil || !ready {
		t.Fatalf("Init = (%t, %v)", ready, err)
	}
	if !lb.Gate().Ready() {
		t.Fatal("gate not ready after init")
	}

	batch := pipeline.Batch{ID: "b1", Items: []pipeline.Item{
		{ID: "i1", Text: "a perfectly ordinary sentence about gardening today"},
	}}
	results, err := lb.Classify(context.Background(), batch)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "i1" {
		t.Fatalf("results: %+v", results)
	}
	if results[0].Source != pipeline.SourceFallback {
		t.Fatalf("source = %q, want fallback", results[0].Source)
	}
}

func TestLoopbackRejectsAfterClose(t *testing.T) {
	lb := NewLoopback(newFallbackGateway())
	if err := lb.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := lb.Init(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Init err = %v, want ErrClosed", err)
	}
	if _, err := lb.Classify(context.Background(), pipeline.Batch{ID: "b1"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Classify err = %v, want ErrClosed", err)
	}
}
