package core

import (
	"sync"
	"sync/atomic"
)

// EventType defines the type of event being published.
type EventType string

const (
	StateChangedEvent    EventType = "StateChanged"
	ReportPublishedEvent EventType = "ReportPublished"
	RebootEvent          EventType = "Reboot"
)

// subscriberBuffer is sized so the agent loop never waits on an observer.
const subscriberBuffer = 100

// Event is the envelope for all events leaving the agent loop.
type Event struct {
	Type    EventType
	Payload interface{}
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

// EventBus fans agent events out to observers such as the status server.
// Publishing never blocks: a full subscriber loses the event.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[Subscriber]map[EventType]struct{}
	dropped atomic.Uint64
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[Subscriber]map[EventType]struct{})}
}

// Subscribe returns a channel that receives events of the given types.
func (eb *EventBus) Subscribe(eventTypes ...EventType) Subscriber {
	types := make(map[EventType]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = struct{}{}
	}

	ch := make(Subscriber, subscriberBuffer)
	eb.mu.Lock()
	eb.subs[ch] = types
	eb.mu.Unlock()
	return ch
}

// Unsubscribe stops delivery to ch. The channel is left open so a reader
// can drain it.
func (eb *EventBus) Unsubscribe(ch Subscriber) {
	eb.mu.Lock()
	delete(eb.subs, ch)
	eb.mu.Unlock()
}

// Publish delivers event to every subscriber interested in its type.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for ch, types := range eb.subs {
		if _, ok := types[event.Type]; !ok {
			continue
		}
		select {
		case ch <- event:
		default:
			eb.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were lost to full subscribers.
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}
