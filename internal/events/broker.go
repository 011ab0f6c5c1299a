package events

import (
	"context"
	"log/slog"
	"sync"
)

// Broker fans events out to subscribers over buffered channels. Delivery is
// best-effort: a subscriber that falls behind loses events rather than
// stalling the detection loop. Drop, never queue.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]chan TextDisappearance
	nextID int
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan TextDisappearance)}
}

// Subscribe registers a consumer and returns its channel plus a cancel
// function. Cancel is idempotent and closes the channel.
func (b *Broker) Subscribe(buffer int) (<-chan TextDisappearance, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan TextDisappearance, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
func (b *Broker) Publish(ctx context.Context, event TextDisappearance) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			slog.Debug("dropping event for slow subscriber", "subscriber", id, "event", event.ID)
		}
	}
	return nil
}

// Close shuts the broker down and closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
