package journal

import (
	"context"
	"sync"
)

// Bus wraps a Store and notifies subscribers of every appended entry.
type Bus struct {
	Store
	mu   sync.RWMutex
	subs map[chan Entry]struct{}
}

// NewBus wraps store.
func NewBus(store Store) *Bus {
	return &Bus{
		Store: store,
		subs:  make(map[chan Entry]struct{}),
	}
}

// Append stores e, then fans it out. Slow subscribers miss entries rather
// than block the turn.
func (b *Bus) Append(ctx context.Context, e Entry) (*Entry, error) {
	stored, err := b.Store.Append(ctx, e)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- *stored:
		default:
		}
	}
	b.mu.RUnlock()
	return stored, nil
}

// Subscribe returns a buffered channel receiving new entries.
func (b *Bus) Subscribe() chan Entry {
	ch := make(chan Entry, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it.
func (b *Bus) Unsubscribe(ch chan Entry) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
