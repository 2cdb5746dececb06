package channel

import (
	"context"
	"errors"

	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

var (
	// ErrUnreachable is returned when the scoring context cannot be
	// reached: never initialized, crashed, or torn down. Callers treat
	// the dispatch as rejected and abandon the batch.
	ErrUnreachable = errors.New("scoring context unreachable")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("channel closed")
)

// Channel moves a batch from the detecting context to the scoring context
// and the matching response back. Request and response are correlated
// solely by batch id; ordering between different batches is not
// preserved. A channel must fail explicitly rather than hang when the
// scoring context is unreachable.
type Channel interface {
	// Init asks the scoring context to bring up its classifier and
	// reports whether it reached a ready state.
	Init(ctx context.Context) (bool, error)

	// Classify dispatches a batch and waits for the response with the
	// same batch id.
	Classify(ctx context.Context, batch pipeline.Batch) ([]pipeline.Result, error)

	// Close tears the channel down; later calls fail with ErrClosed and
	// in-flight calls fail rather than hang.
	Close() error
}

// Gate exposes scorer readiness to the batcher's deferred-flush loop.
// The local gateway implements it directly; the websocket channel tracks
// it from init responses and ready broadcasts.
type Gate interface {
	Ready() bool
	ReadyC() <-chan struct{}
}
