package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated    = "booking_created"
	EventBookingAccepted   = "booking_accepted"
	EventBookingRejected   = "booking_rejected"
	EventBookingAllocated  = "booking_allocated"
	EventBookingCancelled  = "booking_cancelled"
	EventBookingExpired    = "booking_expired"
	EventBookingCompleted  = "booking_completed"
	EventConflictOverride  = "conflict_overridden"
	EventDisputeRaised     = "dispute_raised"
	EventDisputeResolved   = "dispute_resolved"
	EventDamageReported    = "damage_reported"
	EventDamageResolved    = "damage_resolved"
	EventOperatorRequested = "operator_requested"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID  string    `json:"booking_id"`
	FarmerID   string    `json:"farmer_id"`
	SupplierID string    `json:"supplier_id,omitempty"`
	ResourceID string    `json:"resource_id,omitempty"`
	Category   string    `json:"category"`
	Purpose    string    `json:"purpose"`
	Status     string    `json:"status"`
	Date       time.Time `json:"date"`
	Quantity   int64     `json:"quantity,omitempty"`
	ChangedBy  string    `json:"changed_by,omitempty"`
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
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
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
		_ = handler(event)
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
