package rules

import (
	"sync"
	"time"
)

// EventType names something that happened in a match.
type EventType string

const (
	EventPhaseChanged     EventType = "PHASE_CHANGED"
	EventTurnStarted      EventType = "TURN_STARTED"
	EventUntapped         EventType = "UNTAPPED"
	EventCardDrawn        EventType = "CARD_DRAWN"
	EventLandPlayed       EventType = "LAND_PLAYED"
	EventCreatureCast     EventType = "CREATURE_CAST"
	EventAttackerDeclared EventType = "ATTACKER_DECLARED"
	EventBlockerDeclared  EventType = "BLOCKER_DECLARED"
	EventDamagedPlayer    EventType = "COMBAT_DAMAGE_PLAYER"
	EventCreatureDied     EventType = "CREATURE_DIED"
	EventDecisionPending  EventType = "DECISION_PENDING"
	EventGameOver         EventType = "GAME_OVER"
)

// Event is published after the match state has changed.
type Event struct {
	Type    EventType
	Player  string // player whose turn it is
	Subject string // card, player or phase the event is about
	Source  string // card that caused it, if any
	Amount  int
	Turn    int
	Phase   Phase
	Detail  string
	At      time.Time
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType EventType, player, subject, source string) Event {
	return Event{
		Type:    eventType,
		Player:  player,
		Subject: subject,
		Source:  source,
		At:      time.Now(),
	}
}

type subscription struct {
	handle int
	all    bool
	only   EventType
	fn     func(Event)
}

// EventBus delivers events synchronously, in subscription order.
type EventBus struct {
	mu   sync.RWMutex
	subs []subscription
	next int
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn for every event. It returns -1 for a nil fn.
func (bus *EventBus) Subscribe(fn func(Event)) int {
	return bus.add(subscription{all: true, fn: fn})
}

// SubscribeTyped registers fn for one event type. It returns -1 for a nil fn.
func (bus *EventBus) SubscribeTyped(eventType EventType, fn func(Event)) int {
	return bus.add(subscription{only: eventType, fn: fn})
}

func (bus *EventBus) add(sub subscription) int {
	if sub.fn == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	sub.handle = bus.next
	bus.next++
	bus.subs = append(bus.subs, sub)
	return sub.handle
}

// Unsubscribe drops the subscription with the given handle, if any.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, sub := range bus.subs {
		if sub.handle == handle {
			bus.subs = append(bus.subs[:i:i], bus.subs[i+1:]...)
			return
		}
	}
}

// Publish calls every matching subscriber. Subscribers must not subscribe or
// unsubscribe from inside the callback.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	for _, sub := range bus.subs {
		if sub.all || sub.only == event.Type {
			sub.fn(event)
		}
	}
}
