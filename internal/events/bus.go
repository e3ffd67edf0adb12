package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTrialStarted          EventType = "TRIAL_STARTED"
	EventCheckoutStarted       EventType = "CHECKOUT_STARTED"
	EventSubscriptionActivated EventType = "SUBSCRIPTION_ACTIVATED"
	EventSubscriptionFailed    EventType = "SUBSCRIPTION_FAILED"
	EventSubscriptionExpired   EventType = "SUBSCRIPTION_EXPIRED"
	EventSubscriptionCancelled EventType = "SUBSCRIPTION_CANCELLED"
	EventUserBanned            EventType = "USER_BANNED"
	EventUserUnbanned          EventType = "USER_UNBANNED"
	EventUserLogout            EventType = "USER_LOGOUT"
	EventCheckpointRefreshed   EventType = "CHECKPOINT_REFRESHED"
	EventMaintenanceToggled    EventType = "MAINTENANCE_TOGGLED"
	EventError                 EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishLifecycle publishes a subscription lifecycle transition
func (eb *EventBus) PublishLifecycle(eventType EventType, userID, subscriptionID, status string) {
	eb.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{
			"user_id":         userID,
			"subscription_id": subscriptionID,
			"status":          status,
		},
	})
}

// PublishBanChange publishes a ban or unban of a user account
func (eb *EventBus) PublishBanChange(userID string, banned bool, reason string) {
	eventType := EventUserBanned
	if !banned {
		eventType = EventUserUnbanned
	}
	eb.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{
			"user_id": userID,
			"banned":  banned,
			"reason":  reason,
		},
	})
}

// PublishCheckpointRefreshed publishes a checkpoint recompute for a user
func (eb *EventBus) PublishCheckpointRefreshed(userID, state, tier string) {
	eb.Publish(Event{
		Type: EventCheckpointRefreshed,
		Data: map[string]interface{}{
			"user_id": userID,
			"state":   state,
			"tier":    tier,
		},
	})
}

// PublishMaintenanceToggled publishes a maintenance mode change
func (eb *EventBus) PublishMaintenanceToggled(enabled bool, actorID string) {
	eb.Publish(Event{
		Type: EventMaintenanceToggled,
		Data: map[string]interface{}{
			"enabled":  enabled,
			"actor_id": actorID,
		},
	})
}

// PublishUserLogout publishes a user logout event
func (eb *EventBus) PublishUserLogout(userID string) {
	eb.Publish(Event{
		Type: EventUserLogout,
		Data: map[string]interface{}{
			"user_id": userID,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}

// BroadcastFunc is a callback function for broadcasting events to specific users.
// Wired up by the api package at startup so lower layers can push to websocket
// clients without importing api.
type BroadcastFunc func(userID string, data interface{})

var broadcastLifecycleEvent BroadcastFunc

// SetBroadcastLifecycleEvent sets the callback for lifecycle event broadcasts
func SetBroadcastLifecycleEvent(fn BroadcastFunc) {
	broadcastLifecycleEvent = fn
}

// BroadcastLifecycleEvent broadcasts a lifecycle event to a user
func BroadcastLifecycleEvent(userID string, data interface{}) {
	if broadcastLifecycleEvent != nil && userID != "" {
		go broadcastLifecycleEvent(userID, data)
	}
}
