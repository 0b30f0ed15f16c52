package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/plans"
)

// SubscriptionStore persists subscription records. Implementations must make
// Update conditional on Version so concurrent webhook deliveries for the same
// record cannot clobber each other; a stale write returns ErrVersionConflict.
type SubscriptionStore interface {
	// Get returns a record by its internal id.
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// GetByUser returns the user's most recent non-terminal record, or
	// ErrSubscriptionNotFound.
	GetByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// GetByProviderSubID looks a record up by the payment processor's
	// subscription id.
	GetByProviderSubID(ctx context.Context, providerSubID string) (*Subscription, error)

	// GetPendingByUser returns the user's pending record awaiting provider
	// confirmation, or ErrSubscriptionNotFound.
	GetPendingByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Create inserts a new record.
	Create(ctx context.Context, sub *Subscription) error

	// Update replaces the record if the stored version matches sub.Version,
	// then increments it. Returns ErrVersionConflict on a stale write.
	Update(ctx context.Context, sub *Subscription) error
}

// Account is the subset of a user record the billing layer needs.
type Account struct {
	ID     uuid.UUID
	Email  string
	Plan   plans.PlanID
	Status Status
}

// UserDirectory resolves users and mirrors their current plan and
// subscription status onto the user record, which is what the entitlement
// layer reads.
type UserDirectory interface {
	// FindByEmail resolves a user by billing email. Lookup is
	// case-insensitive; implementations match on the lowercased address.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// SetPlanStatus updates the plan and subscription status mirrored on the
	// user record.
	SetPlanStatus(ctx context.Context, userID uuid.UUID, plan plans.PlanID, status Status) error
}
