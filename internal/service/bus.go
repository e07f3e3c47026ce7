package service

import "sync"

// Event represents a state change.
type Event struct {
	Resource string // "session" or "spatial"
	Action   string // "loading", "updated", "created"
	ID       string // session or record ID
}

// EventBus is a simple fan-out pub/sub for change events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// SubscribeID returns a channel that only receives events for one ID. The
// returned stop function must be called to release it.
func (b *EventBus) SubscribeID(id string) (<-chan Event, func()) {
	src := b.Subscribe()
	out := make(chan Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case e, ok := <-src:
				if !ok {
					return
				}
				if e.ID != id {
					continue
				}
				select {
				case out <- e:
				default:
				}
			case <-done:
				return
			}
		}
	}()
	return out, func() {
		close(done)
		b.Unsubscribe(src)
	}
}
