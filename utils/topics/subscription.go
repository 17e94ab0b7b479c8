package topics

import (
	"context"
	"io"
	"sync"
)

// subscriptionID is only unique within a single Topic
type subscriptionID uint

// Subscription receives the values published to a Topic.
// Publishers block on subscribers, so a Subscription MUST be read from and
// MUST be closed with Close() when no longer used.
type Subscription[T any] struct {
	id subscriptionID

	mu    sync.Mutex
	topic *Topic[T] // nil once closed
	ch    <-chan T
}

// Channel returns the channel that receives the published values.
// It returns nil after Close.
func (s *Subscription[T]) Channel() <-chan T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Next blocks until the next value, or until the context is closed.
// It returns io.ErrClosedPipe when the subscription was closed.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	ch := s.Channel()
	if ch == nil {
		return zero, io.ErrClosedPipe
	}
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case v, ok := <-ch:
		if !ok {
			return zero, io.ErrClosedPipe
		}
		return v, nil
	}
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	topic := s.topic
	s.topic = nil
	s.ch = nil
	s.mu.Unlock()

	if topic != nil {
		topic.unsubscribe(s.id)
	}
}
