package dispatch

import (
	"context"
	"errors"
	"time"

	"clipdigest/internal/services"
)

// IOPool bounds concurrent IO-bound work and enforces a per-call deadline.
// Slots are cheap; the limit exists to keep network and subprocess fan-out
// predictable, not to serialize.
type IOPool struct {
	slots   chan struct{}
	timeout time.Duration
}

// NewIOPool creates a pool with size concurrent slots and a default per-call
// timeout. A zero timeout disables the deadline.
func NewIOPool(size int, timeout time.Duration) *IOPool {
	if size < 1 {
		size = 1
	}
	return &IOPool{
		slots:   make(chan struct{}, size),
		timeout: timeout,
	}
}

// Run acquires a slot, applies the pool deadline, and invokes fn. A deadline
// overrun is reported as a timeout error and the context handed to fn is
// cancelled so subprocesses and requests are torn down.
func (p *IOPool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return services.Wrap(services.ErrTimeout, "dispatch", "io",
			"cancelled while waiting for an io slot", ctx.Err())
	}
	defer func() { <-p.slots }()

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if p.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	err := fn(runCtx)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return services.Wrap(services.ErrTimeout, "dispatch", "io",
			"operation exceeded the io deadline", err)
	}
	return err
}
