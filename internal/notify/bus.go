// Package notify is the in-process publish/subscribe bus for cross-component
// signals: connectivity transitions, logged intake, goal updates. Subscribers
// are registered explicitly and enumerable, so the wiring is testable instead
// of hiding behind ambient global events.
package notify

import "sync"

// Topic names a class of events on the bus.
type Topic string

const (
	// TopicConnectivity fires when the environment reports the remote store
	// became reachable or unreachable. Online carries the new state.
	TopicConnectivity Topic = "connectivity"

	// TopicIntakeLogged fires after an intake event is accepted (confirmed
	// or queued). UserID carries the owner.
	TopicIntakeLogged Topic = "intake.logged"

	// TopicGoalUpdated fires after a goal edit is accepted.
	TopicGoalUpdated Topic = "goal.updated"
)

// Event is one published signal.
type Event struct {
	Topic  Topic
	UserID string
	Online bool
}

// Handler consumes one event. Handlers run synchronously on the publishing
// goroutine and must not block.
type Handler func(Event)

// Bus is a minimal synchronous pub/sub hub.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[Topic]map[int]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic]map[int]Handler)}
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// function.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	id := b.next
	b.next++
	b.subs[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish delivers the event to every current subscriber of its topic.
// Delivery order across subscribers is unspecified.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Topic]))
	for _, h := range b.subs[ev.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Subscribers returns the number of handlers registered for a topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
