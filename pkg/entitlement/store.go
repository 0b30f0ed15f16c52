package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/plans"
)

// Store persists per-user usage ledgers.
//
// Implementations must make ResetIfDue and IncrementWithin single atomic
// operations per user: two concurrent requests for the same user must never
// both pass a limit check that only one of them fits under.
type Store interface {
	// Get retrieves the ledger for a user. Returns ErrLedgerNotFound when
	// the user has no ledger yet.
	Get(ctx context.Context, userID uuid.UUID) (*Ledger, error)

	// Create persists a fresh ledger. Used at registration.
	Create(ctx context.Context, ledger *Ledger) error

	// ResetIfDue zeroes all counters and advances the anchor to periodStart
	// if the stored anchor predates it. Calling it again within the same
	// period is a no-op, so it is safe to run before every check.
	ResetIfDue(ctx context.Context, userID uuid.UUID, periodStart time.Time) error

	// IncrementWithin atomically increments the feature counter by one,
	// provided the current count is below limit. Returns the count after the
	// increment, or the unchanged current count alongside ErrLimitExceeded
	// when the precondition fails. An Unlimited limit always increments.
	IncrementWithin(ctx context.Context, userID uuid.UUID, feature plans.Feature, limit plans.Limit) (int64, error)
}
