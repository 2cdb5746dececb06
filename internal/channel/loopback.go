package channel

import (
	"context"
	"sync/atomic"

	"github.com/feedwatch/stream-classify-pipeline/internal/scorer"
	"github.com/feedwatch/stream-classify-pipeline/pkg/pipeline"
)

// Loopback delivers batches to a gateway in the same process. Used in
// embedded mode, where the detecting and scoring contexts share a binary,
// and by tests. It still honors the channel contract: after Close every
// call fails with ErrClosed.
type Loopback struct {
	gw     *scorer.Gateway
	closed atomic.Bool
}

// NewLoopback creates a loopback channel around a local gateway.
func NewLoopback(gw *scorer.Gateway) *Loopback {
	return &Loopback{gw: gw}
}

// Init drives gateway initialization.
func (l *Loopback) Init(ctx context.Context) (bool, error) {
	if l.closed.Load() {
		return false, ErrClosed
	}
	if err := l.gw.EnsureReady(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Classify scores the batch on the local gateway.
func (l *Loopback) Classify(ctx context.Context, batch pipeline.Batch) ([]pipeline.Result, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	return l.gw.Classify(ctx, batch)
}

// Close marks the channel unreachable.
func (l *Loopback) Close() error {
	l.closed.Store(true)
	return nil
}

// Gate returns the local gateway as the readiness gate.
func (l *Loopback) Gate() Gate {
	return l.gw
}
