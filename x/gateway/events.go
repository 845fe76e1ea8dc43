package gateway

import (
	"sync"
	"time"
)

// EventKind classifies gateway events
type EventKind string

const (
	EventPublished EventKind = "published" // a value was sent to the transport
	EventDelivered EventKind = "delivered" // a received value was written to the PV
	EventError     EventKind = "error"
	EventDropped   EventKind = "dropped" // a value was discarded (queue full or hold-off)
)

// Event is one entry of the gateway activity feed
type Event struct {
	Time     time.Time `json:"time"`
	Kind     EventKind `json:"kind"`
	Channel  string    `json:"channel"`
	Topic    string    `json:"topic,omitempty"`
	Elements int       `json:"elements,omitempty"`
	Segments int       `json:"segments,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// EventBus fans events out to subscribers. Slow subscribers lose events rather than
// blocking the gateway.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
}

// NewEventBus creates an empty bus
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events buffered to size and a func ending the
// subscription, which also closes the channel
func (b *EventBus) Subscribe(size int) (<-chan Event, func()) {
	if size < 1 {
		size = 1
	}
	ch := make(chan Event, size)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber with room in its buffer
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
