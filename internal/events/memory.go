package events

import (
	"context"
	"sync"
)

// MemoryBroker is the in-process Broker used when no Redis address is
// configured. Delivery is best-effort: a subscriber that falls behind its
// buffer loses new events rather than blocking writers.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[int]*subscription
	nextID int
	closed bool
}

type subscription struct {
	ch   chan []byte
	once sync.Once
}

// close is only called while holding the broker write lock, so it cannot
// race a Publish send.
func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[int]*subscription)}
}

func (b *MemoryBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[channel] {
		select {
		case sub.ch <- payload:
		default:
		}
	}

	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := &subscription{ch: make(chan []byte, 64)}

	b.mu.Lock()
	if b.closed {
		sub.close()
		b.mu.Unlock()
		return sub.ch, func() {}, nil
	}
	id := b.nextID
	b.nextID++
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]*subscription)
	}
	b.subs[channel][id] = sub
	b.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			if subs, ok := b.subs[channel]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subs, channel)
				}
			}
			sub.close()
			b.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()

	return sub.ch, cleanup, nil
}

// Close drops all subscriptions and closes their channels.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for channel, subs := range b.subs {
		for id, sub := range subs {
			delete(subs, id)
			sub.close()
		}
		delete(b.subs, channel)
	}

	return nil
}
