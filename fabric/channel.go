package fabric

import (
	"context"
	"sync/atomic"
)

// MessageChannel is a buffered, context-aware delivery queue for one
// endpoint. Send and Receive honour both the caller's context and the
// channel's own lifetime context; Close is idempotent.
type MessageChannel[T any] struct {
	channel chan T
	context context.Context
	closed  atomic.Int32
}

func NewMessageChannel[T any](ctx context.Context, bufferSize int) *MessageChannel[T] {
	return &MessageChannel[T]{
		channel: make(chan T, bufferSize),
		context: ctx,
	}
}

func (mc *MessageChannel[T]) Send(ctx context.Context, message T) error {
	select {
	case mc.channel <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-mc.context.Done():
		return mc.context.Err()
	}
}

// Receive blocks for the next message. A closed channel yields the zero
// value with a nil error, which the delivery loop treats as shutdown.
func (mc *MessageChannel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case message := <-mc.channel:
		return message, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-mc.context.Done():
		var zero T
		return zero, mc.context.Err()
	}
}

func (mc *MessageChannel[T]) Close() {
	if mc.closed.CompareAndSwap(0, 1) {
		close(mc.channel)
	}
}
