package server

import (
	"context"
	"sync"
	"time"

	"github.com/deepthoughtslab/deepthoughts/internal/thoughts"
)

const (
	// EventThoughtChanged signals that a thought was created, updated, or
	// deleted and browse views should refresh.
	EventThoughtChanged = "thought-change"
	// EventThoughtShared carries the share action's notification.
	EventThoughtShared = "thought-shared"
	eventHeartbeat     = "heartbeat"
	eventSourceBackend = "deepthoughts-backend"
)

// Event is one notification delivered to subscribed UI clients.
type Event struct {
	EventType string    `json:"event"`
	ThoughtID string    `json:"thought_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// EventDispatcher fans events out to subscribed clients. Slow subscribers
// drop events rather than block the publisher.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*eventSubscriber
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

type eventSubscriber struct {
	id     int64
	stream chan Event
}

// NewEventDispatcher constructs a dispatcher with a default buffer per
// subscriber.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[int64]*eventSubscriber),
		bufferSize:  16,
		clock:       time.Now,
	}
}

// Subscribe registers a stream that receives events until the context ends or
// the cleanup function runs.
func (d *EventDispatcher) Subscribe(ctx context.Context) (<-chan Event, func()) {
	subscriber := &eventSubscriber{
		id:     d.nextSequence(),
		stream: make(chan Event, d.bufferSize),
	}
	d.registerSubscriber(subscriber)
	cleanup := func() {
		d.unregisterSubscriber(subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the event to every subscriber without blocking.
func (d *EventDispatcher) Publish(event Event) {
	if event.EventType == "" {
		return
	}
	if event.Source == "" {
		event.Source = eventSourceBackend
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.clock()
	}

	d.mu.RLock()
	copies := make([]*eventSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()

	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

// ThoughtShared implements thoughts.Notifier by publishing a share event.
func (d *EventDispatcher) ThoughtShared(ctx context.Context, thought thoughts.Thought) {
	d.Publish(Event{
		EventType: EventThoughtShared,
		ThoughtID: thought.ID,
		Title:     thought.Title,
	})
}

func (d *EventDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *EventDispatcher) registerSubscriber(subscriber *eventSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[subscriber.id] = subscriber
}

func (d *EventDispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}
