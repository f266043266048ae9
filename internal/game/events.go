package game

import (
	"sync"

	"github.com/cardroom/uno-server-go/internal/deck"
)

// EventType indicates the category of a table event.
type EventType string

const (
	EventGameStarted       EventType = "GAME_STARTED"
	EventCardPlayed        EventType = "CARD_PLAYED"
	EventCardsDrawn        EventType = "CARDS_DRAWN"
	EventTurnAdvanced      EventType = "TURN_ADVANCED"
	EventTurnSkipped       EventType = "TURN_SKIPPED"
	EventDirectionReversed EventType = "DIRECTION_REVERSED"
	EventColorChosen       EventType = "COLOR_CHOSEN"
	EventDrawStacked       EventType = "DRAW_STACKED"
	EventSwapRequested     EventType = "SWAP_REQUESTED"
	EventHandsSwapped      EventType = "HANDS_SWAPPED"
	EventHandsRotated      EventType = "HANDS_ROTATED"
	EventLowHandDeclared   EventType = "LOW_HAND_DECLARED"
	EventPenaltyAssessed   EventType = "PENALTY_ASSESSED"
	EventInsufficientCards EventType = "INSUFFICIENT_CARDS"
	EventGameWon           EventType = "GAME_WON"
)

// Event records one observable consequence of a state transition. Events are
// emitted alongside the new state and carry the sequence number of the
// transition that produced them.
type Event struct {
	Type     EventType  `json:"type"`
	PlayerID string     `json:"playerId,omitempty"`
	TargetID string     `json:"targetId,omitempty"`
	Card     *deck.Card `json:"card,omitempty"`
	Color    deck.Color `json:"color,omitempty"`
	Count    int        `json:"count,omitempty"`
	Seq      uint64     `json:"seq"`
}

// Listener is a callback reacting to table events.
type Listener func(Event)

// EventBus is a synchronous publish/subscribe fan-out with optional type
// filtering. Each room owns its own bus; there is no process-wide registry.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType]map[int]Listener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType]map[int]Listener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a single event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	if bus.typedListeners[eventType] == nil {
		bus.typedListeners[eventType] = make(map[int]Listener)
	}
	bus.typedListeners[eventType][handle] = listener
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for _, listeners := range bus.typedListeners {
		delete(listeners, handle)
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}
