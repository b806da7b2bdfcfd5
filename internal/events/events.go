package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventQueueJoined         = "queue_joined"
	EventQueueLeft           = "queue_left"
	EventQueueServed         = "queue_served"
	EventQueueCleared        = "queue_cleared"
	EventOfficeStatusChanged = "office_status_changed"
	EventUserRenamed         = "user_renamed"
)

// QueueEventPayload is the snapshot delivered to subscribers of queue events.
type QueueEventPayload struct {
	VisitID     int64     `json:"visit_id,omitempty"`
	UserID      int64     `json:"user_id,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Position    int       `json:"position,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	NextUserID  int64     `json:"next_user_id,omitempty"`
	JoinedAt    time.Time `json:"joined_at,omitempty"`
	QueueLength int       `json:"queue_length"`
	Status      string    `json:"status,omitempty"`
	Message     string    `json:"message,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// ErrorHandler is told about handler failures; publishing never fails because of them.
type ErrorHandler func(event *Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs the handler failure callback.
func (b *EventBus) OnError(fn ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type synchronously.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
