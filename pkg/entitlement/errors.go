package entitlement

import (
	"errors"
	"fmt"

	"github.com/formexa/formexa/pkg/plans"
)

var (
	// ErrLimitExceeded indicates the user has used up the feature's quota for
	// the current period. User-facing and recoverable (upgrade or wait for
	// the monthly reset); not logged as a fault.
	ErrLimitExceeded = errors.New("entitlement: limit exceeded")

	ErrLedgerNotFound = errors.New("entitlement: ledger not found")
	ErrInvalidFeature = errors.New("entitlement: invalid feature")
)

// LimitExceededError carries the details callers surface to the user: which
// feature ran out, the plan's limit, and the current count.
type LimitExceededError struct {
	Feature plans.Feature
	Limit   plans.Limit
	Current int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("entitlement: %s limit reached (%d of %d used this period)",
		e.Feature, e.Current, e.Limit)
}

// Unwrap makes errors.Is(err, ErrLimitExceeded) work on the typed error.
func (e *LimitExceededError) Unwrap() error {
	return ErrLimitExceeded
}
