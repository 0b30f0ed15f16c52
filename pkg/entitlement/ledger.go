package entitlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/plans"
)

// Ledger holds a user's metered usage for the current period.
type Ledger struct {
	UserID      uuid.UUID
	Counts      map[plans.Feature]int64
	ResetAnchor time.Time // first day of the current usage period (UTC)
}

// Count returns the current counter for a feature, zero when unset.
func (l *Ledger) Count(feature plans.Feature) int64 {
	if l.Counts == nil {
		return 0
	}
	return l.Counts[feature]
}

// NewLedger returns a zeroed ledger anchored to the period containing now.
func NewLedger(userID uuid.UUID, now time.Time) *Ledger {
	counts := make(map[plans.Feature]int64, len(plans.Features()))
	for _, f := range plans.Features() {
		counts[f] = 0
	}
	return &Ledger{
		UserID:      userID,
		Counts:      counts,
		ResetAnchor: PeriodStart(now),
	}
}

// PeriodStart returns the first day of the calendar month containing t, UTC.
// Usage periods are calendar months; counters accumulate from this boundary.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
