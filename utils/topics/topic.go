// Package topics implements typed in-process publish/subscribe, used for
// replicator events.
package topics

import (
	"context"
	"sync"
)

// New returns a new Topic
func New[T any]() *Topic[T] {
	return &Topic[T]{
		subscribers: make(map[subscriptionID]chan<- T),
	}
}

// Topic is a single topic that subscribers can Subscribe() to
type Topic[T any] struct {
	mu          sync.Mutex
	subscribers map[subscriptionID]chan<- T
	lastID      subscriptionID
	last        T
	hasLast     bool
}

// Publish publishes a value to all subscribers. It blocks until every
// subscriber received it.
func (t *Topic[T]) Publish(v T) {
	_ = t.PublishContext(context.Background(), v)
}

// PublishContext is like Publish, but stops delivering when the context
// is closed. Subscribers that did not receive the value yet will miss it.
func (t *Topic[T]) PublishContext(ctx context.Context, v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = v
	t.hasLast = true
	for _, ch := range t.subscribers {
		select {
		case ch <- v:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Last returns the last published value, if any
func (t *Topic[T]) Last() (value T, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasLast
}

// Len returns the number of active subscriptions
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

// Subscribe creates a new Subscription with an unbuffered channel.
// With sendLast, the channel has a buffer of one and immediately receives the
// last published value, if there is one.
func (t *Topic[T]) Subscribe(sendLast bool) *Subscription[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := 0
	if sendLast {
		size = 1
	}
	ch := make(chan T, size)
	if sendLast && t.hasLast {
		ch <- t.last // cannot block, nothing else can publish while we hold the lock
	}

	t.lastID++
	t.subscribers[t.lastID] = ch
	return &Subscription[T]{
		id:    t.lastID,
		topic: t,
		ch:    ch,
	}
}

// Handle calls cb for every published value until cb returns an error or
// the context is closed.
func (t *Topic[T]) Handle(ctx context.Context, cb func(T) error) error {
	sub := t.Subscribe(false)
	defer sub.Close()
	for {
		v, err := sub.Next(ctx)
		if err != nil {
			return err
		}
		if err := cb(v); err != nil {
			return err
		}
	}
}

func (t *Topic[T]) unsubscribe(id subscriptionID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ch, exists := t.subscribers[id]; exists {
		close(ch)
		delete(t.subscribers, id)
	}
}
