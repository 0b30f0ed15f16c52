package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/plans"
)

// Subscription is the persistent record of a user's billing relationship.
// Records are never hard-deleted; cancellation is a status transition.
type Subscription struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Plan         plans.PlanID
	BillingCycle plans.BillingCycle
	Price        plans.Money

	// ProviderSubID is empty until the payment processor confirms creation.
	// Once set it is immutable and unique across all records.
	ProviderSubID string

	Status      Status
	StartDate   *time.Time
	RenewalDate *time.Time
	EndDate     *time.Time
	CancelledAt *time.Time

	// FailedPayments counts consecutive payment denials; a successful
	// activation resets it.
	FailedPayments int

	// Events is an append-only audit log, never mutated or reordered.
	Events []Event

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version guards concurrent updates to the same record.
	Version int64
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *Subscription) IsPending() bool {
	return s.Status == StatusPending
}

func (s *Subscription) IsCancelled() bool {
	return s.Status == StatusCancelled
}

// HasEvent reports whether an audit entry with the given provider event id
// has already been appended. Used to make replays of the same webhook
// delivery no-ops.
func (s *Subscription) HasEvent(eventID string) bool {
	if eventID == "" {
		return false
	}
	for _, ev := range s.Events {
		if ev.ID == eventID {
			return true
		}
	}
	return false
}

// AppendEvent adds an entry to the audit log.
func (s *Subscription) AppendEvent(ev Event) {
	s.Events = append(s.Events, ev)
}
