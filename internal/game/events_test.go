package game

import "testing"

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()

	var all, won int
	bus.Subscribe(func(Event) { all++ })
	bus.SubscribeTyped(EventGameWon, func(Event) { won++ })

	bus.Publish(Event{Type: EventCardPlayed})
	bus.Publish(Event{Type: EventGameWon})

	if all != 2 {
		t.Fatalf("expected 2 deliveries to the untyped listener, got %d", all)
	}
	if won != 1 {
		t.Fatalf("expected 1 delivery to the typed listener, got %d", won)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()

	var count int
	handle := bus.Subscribe(func(Event) { count++ })
	typedHandle := bus.SubscribeTyped(EventGameWon, func(Event) { count++ })

	bus.Unsubscribe(handle)
	bus.Unsubscribe(typedHandle)
	bus.Publish(Event{Type: EventGameWon})

	if count != 0 {
		t.Fatalf("expected no deliveries after unsubscribe, got %d", count)
	}
}

func TestEventBusNilListener(t *testing.T) {
	bus := NewEventBus()
	if handle := bus.Subscribe(nil); handle != -1 {
		t.Fatalf("expected -1 handle for nil listener, got %d", handle)
	}
	if handle := bus.SubscribeTyped(EventGameWon, nil); handle != -1 {
		t.Fatalf("expected -1 handle for nil typed listener, got %d", handle)
	}
}
