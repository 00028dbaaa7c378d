package service

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event is one lifecycle notification. Data carries the article id plus
// the minimal changed fields.
type Event struct {
	Name string         `json:"event"`
	Data map[string]any `json:"data"`
}

// JSON renders the event as a wire message. Marshal errors cannot occur
// for the payload shapes we emit; a failure yields an empty object.
func (e Event) JSON() []byte {
	msg, err := json.Marshal(e)
	if err != nil {
		return []byte("{}")
	}
	return msg
}

// Subscriber receives broadcast events on a buffered channel. A
// subscriber that stops draining is dropped by the broadcaster.
type Subscriber struct {
	C chan Event
}

// Broadcaster fans lifecycle events out to live subscribers.
// Best-effort: a slow or dead subscriber is removed without affecting
// delivery to the others, and broadcasting never returns an error.
type Broadcaster struct {
	logger *zap.Logger

	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

const subscriberBuffer = 32

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger,
		subs:   make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new live subscriber.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{C: make(chan Event, subscriberBuffer)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.C)
	}
}

// Broadcast delivers an event to every subscriber. Subscribers whose
// buffers are full are dropped.
func (b *Broadcaster) Broadcast(name string, data map[string]any) {
	event := Event{Name: name, Data: data}

	b.mu.Lock()
	defer b.mu.Unlock()

	var dead []*Subscriber
	for sub := range b.subs {
		select {
		case sub.C <- event:
		default:
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		delete(b.subs, sub)
		close(sub.C)
		b.logger.Warn("Dropped stalled event subscriber", zap.String("event", name))
	}
}

// Count returns the number of live subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
