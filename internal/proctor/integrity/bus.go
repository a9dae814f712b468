package integrity

import (
	"context"
	"sync"
)

// Bus is an in-process Source. The WebSocket stream publishes the signals its
// client reports onto the session's Bus.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Signal)
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Signal))}
}

// Subscribe implements Source.
func (b *Bus) Subscribe(_ context.Context, fn func(Signal)) (func(), error) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}, nil
}

// Publish delivers sig to every current subscriber.
func (b *Bus) Publish(sig Signal) {
	b.mu.Lock()
	subs := make([]func(Signal), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(sig)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
