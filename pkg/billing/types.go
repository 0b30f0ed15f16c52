package billing

import "time"

// Status represents the state of a subscription record. The spellings are
// persisted and shared with partner integrations.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

// Terminal reports whether no further automated transition applies. Cancelled
// records only accumulate audit events.
func (s Status) Terminal() bool {
	return s == StatusCancelled
}

// EventType is the normalized payment-processor event type. Provider
// implementations map their native event names onto these.
type EventType string

const (
	EventSubscriptionCreated   EventType = "SUBSCRIPTION.CREATED"
	EventSubscriptionActivated EventType = "SUBSCRIPTION.ACTIVATED"
	EventSubscriptionCancelled EventType = "SUBSCRIPTION.CANCELLED"
	EventPaymentDenied         EventType = "PAYMENT.DENIED"
)

// WebhookEvent is a normalized asynchronous notification from the payment
// processor. Delivery is at-least-once and possibly reordered; every handler
// treats the event as replayable.
type WebhookEvent struct {
	EventID         string         // provider's unique event id, used for replay dedup
	Type            EventType      // normalized type; unmapped types keep the provider name
	ProviderEvent   string         // original provider event name
	SubscriptionID  string         // provider's subscription id
	SubscriberEmail string         // billing email as the provider knows it
	OccurredAt      time.Time      // provider timestamp; effects derive from this, not wall clock
	Raw             map[string]any // full provider payload for the audit log
}

// Event is one entry in a subscription's append-only audit log.
type Event struct {
	ID        string         `bson:"id,omitempty" json:"id,omitempty"`
	Type      string         `bson:"type" json:"type"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Payload   map[string]any `bson:"payload,omitempty" json:"payload,omitempty"`
}
