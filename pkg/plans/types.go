package plans

// Feature represents a metered generation feature.
type Feature string

// Feature keys are persisted and exposed to partner integrations; the
// spellings are fixed.
const (
	FeatureArticles Feature = "articles"
	FeatureImages   Feature = "images"
	FeatureCode     Feature = "code"
)

// Features lists all metered features in a stable order.
func Features() []Feature {
	return []Feature{FeatureArticles, FeatureImages, FeatureCode}
}

// Valid reports whether f is a known metered feature.
func (f Feature) Valid() bool {
	switch f {
	case FeatureArticles, FeatureImages, FeatureCode:
		return true
	}
	return false
}

// Limit is a per-period cap for a metered feature. Unlimited is an explicit
// sentinel rather than a float infinity so comparisons stay exact.
type Limit int64

// Unlimited indicates no cap for a feature (-1 chosen for storage
// compatibility).
const Unlimited Limit = -1

// IsUnlimited reports whether the limit is the unbounded sentinel.
func (l Limit) IsUnlimited() bool {
	return l == Unlimited
}

// Allows reports whether one more use is permitted at the given current count.
func (l Limit) Allows(current int64) bool {
	if l.IsUnlimited() {
		return true
	}
	return current < int64(l)
}

// BillingCycle represents how often a paid plan renews.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Valid reports whether c is a known billing cycle.
func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}

// Money represents a monetary amount in the smallest currency unit.
// $9.99 USD is Money{Amount: 999, Currency: "USD"}.
type Money struct {
	Amount   int64  `yaml:"amount" json:"amount"`
	Currency string `yaml:"currency" json:"currency"`
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}
