package hub

import (
	"context"
	"sync/atomic"
)

type channel[T any] struct {
	ch     chan T
	ctx    context.Context
	closed atomic.Int32
}

func newChannel[T any](ctx context.Context, bufferSize int) *channel[T] {
	return &channel[T]{
		ch:  make(chan T, bufferSize),
		ctx: ctx,
	}
}

// TrySend delivers without blocking. Returns false when the buffer is full
// or the hub context is done.
func (c *channel[T]) TrySend(value T) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.ch <- value:
		return true
	default:
		return false
	}
}

// Receive blocks until a value arrives, the channel is closed, or either
// context is done.
func (c *channel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case value, ok := <-c.ch:
		if !ok {
			var zero T
			return zero, ErrClosed
		}
		return value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-c.ctx.Done():
		var zero T
		return zero, c.ctx.Err()
	}
}

func (c *channel[T]) Close() {
	if c.closed.CompareAndSwap(0, 1) {
		close(c.ch)
	}
}
