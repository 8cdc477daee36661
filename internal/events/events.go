package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventBookingAccepted        = "booking_accepted"
	EventBookingRejected        = "booking_rejected"
	EventBookingCompleted       = "booking_completed"
	EventBookingCancelled       = "booking_cancelled"
	EventInstantRequestAccepted = "instant_request_accepted"
	EventInstantRequestRejected = "instant_request_rejected"
	EventBookingExpired         = "booking_expired"
	EventInstantRequestExpired  = "instant_request_expired"
	EventBookingsRefreshed      = "bookings_refreshed"
)

// LifecycleEvents are the events that describe a change to one record.
var LifecycleEvents = []string{
	EventBookingAccepted,
	EventBookingRejected,
	EventBookingCompleted,
	EventBookingCancelled,
	EventInstantRequestAccepted,
	EventInstantRequestRejected,
	EventBookingExpired,
	EventInstantRequestExpired,
}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID   string    `json:"booking_id"`
	RequestType string    `json:"request_type"`
	Status      string    `json:"status"`
	UserID      string    `json:"user_id,omitempty"`
	Role        string    `json:"role,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// RefreshPayload summarises one list refresh.
type RefreshPayload struct {
	List  string    `json:"list"`
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	nop := zerolog.Nop()
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: &nop}
}

// WithLogger makes the bus log handler errors.
func (b *EventBus) WithLogger(logger *zerolog.Logger) *EventBus {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeMany registers one handler for several event types.
func (b *EventBus) SubscribeMany(eventTypes []string, handler EventHandler) {
	for _, eventType := range eventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
