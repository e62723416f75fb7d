// Package events provides in-process publishing and subscription for
// inbox state changes, so UI layers can react to refreshes, pushed
// messages, and mutation outcomes without polling the snapshot.
package events

import (
	"errors"
	"sync"
	"time"
)

// EventType categorizes inbox events.
type EventType string

const (
	// TypeRefreshCompleted fires after a poll merges into the cache.
	TypeRefreshCompleted EventType = "refresh.completed"

	// TypeRefreshFailed fires when a scheduled or manual poll errors.
	TypeRefreshFailed EventType = "refresh.failed"

	// TypeMessageInserted fires when a pushed message lands in the cache.
	TypeMessageInserted EventType = "message.inserted"

	// TypeMutationFailed fires when an optimistic mutation is rejected.
	TypeMutationFailed EventType = "mutation.failed"
)

// Event is one inbox state change.
type Event struct {
	Type      EventType
	ThreadID  string
	MessageID string
	Err       error
	At        time.Time
}

// EventHandler is invoked for each event matching a subscription.
type EventHandler func(event Event)

// Filter defines criteria for matching events.
type Filter struct {
	// Types filters by event type (nil = all types).
	Types []EventType

	// ThreadID filters to a specific thread (empty = all).
	ThreadID string
}

// Matches reports whether the event satisfies the filter.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if f.ThreadID != "" && event.ThreadID != f.ThreadID {
		return false
	}
	return true
}

var (
	ErrInvalidSubscriptionID = errors.New("subscription id must not be empty")
	ErrNilHandler            = errors.New("subscription handler must not be nil")
	ErrSubscriptionExists    = errors.New("subscription id already registered")
)

type subscription struct {
	id      string
	filter  Filter
	handler EventHandler
}

// Publisher defines the event publishing and subscription surface.
type Publisher interface {
	// Publish sends an event to all matching subscribers.
	Publish(event Event)

	// Subscribe registers a handler for events matching the filter.
	Subscribe(id string, filter Filter, handler EventHandler) error

	// Unsubscribe removes a subscription by id.
	Unsubscribe(id string) error

	// SubscriberCount returns the number of active subscriptions.
	SubscriberCount() int
}

// InMemoryPublisher implements Publisher using in-process pub/sub.
type InMemoryPublisher struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
}

// NewInMemoryPublisher creates an empty publisher.
func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{
		subscriptions: make(map[string]*subscription),
	}
}

// Publish sends an event to all matching subscribers.
func (p *InMemoryPublisher) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	p.mu.RLock()
	var handlers []EventHandler
	for _, sub := range p.subscriptions {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	p.mu.RUnlock()

	// Invoke handlers outside the lock to avoid deadlocks.
	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler for events matching the filter.
func (p *InMemoryPublisher) Subscribe(id string, filter Filter, handler EventHandler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}
	p.subscriptions[id] = &subscription{id: id, filter: filter, handler: handler}
	return nil
}

// Unsubscribe removes a subscription by id. Unknown ids are a no-op.
func (p *InMemoryPublisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscriptions.
func (p *InMemoryPublisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions)
}
