package events

import (
	"encoding/json"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	handler := func(event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe(EventBookingCreated, handler)

	payload := BookingEventPayload{BookingID: "b-1", FarmerID: "farmer-1", Status: "searching"}
	err := bus.PublishJSON(EventBookingCreated, payload)
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != EventBookingCreated {
		t.Errorf("expected type %s, got %s", EventBookingCreated, received.Type)
	}

	if received.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded BookingEventPayload
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded.BookingID != "b-1" {
		t.Errorf("expected booking b-1, got %s", decoded.BookingID)
	}

	if decoded.Status != "searching" {
		t.Errorf("expected status searching, got %s", decoded.Status)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusTypeIsolation(t *testing.T) {
	bus := NewEventBus()
	var calls int

	bus.Subscribe(EventBookingAccepted, func(_ *Event) error { calls++; return nil })

	bus.Publish(&Event{Type: EventBookingCancelled})

	if calls != 0 {
		t.Errorf("expected handler not to fire for another type, got %d calls", calls)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic
	bus.Publish(&Event{Type: "unknown"})
	err := bus.PublishJSON("unknown", nil)
	if err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}
}

func TestPublishJSONNilBus(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON(EventBookingCreated, nil); err != nil {
		t.Errorf("nil bus should be a no-op, got %v", err)
	}
}
