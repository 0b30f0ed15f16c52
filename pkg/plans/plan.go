package plans

import "maps"

// PlanID identifies a plan tier. The set is closed: free, pro, business.
type PlanID string

const (
	PlanFree     PlanID = "free"
	PlanPro      PlanID = "pro"
	PlanBusiness PlanID = "business"
)

// Valid reports whether id names a known tier.
func (id PlanID) Valid() bool {
	switch id {
	case PlanFree, PlanPro, PlanBusiness:
		return true
	}
	return false
}

// IsPaid reports whether the plan requires a billing subscription.
func (id PlanID) IsPaid() bool {
	return id != PlanFree
}

// Plan describes a tier: per-feature limits and per-cycle prices.
type Plan struct {
	ID     PlanID                 `yaml:"id"`
	Name   string                 `yaml:"name"`
	Limits map[Feature]Limit      `yaml:"limits"`
	Prices map[BillingCycle]Money `yaml:"prices"`
}

func (p Plan) clone() Plan {
	return Plan{
		ID:     p.ID,
		Name:   p.Name,
		Limits: maps.Clone(p.Limits),
		Prices: maps.Clone(p.Prices),
	}
}

// Defaults returns the built-in catalog plans.
func Defaults() []Plan {
	return []Plan{
		{
			ID:   PlanFree,
			Name: "Free",
			Limits: map[Feature]Limit{
				FeatureArticles: 5,
				FeatureImages:   2,
				FeatureCode:     5,
			},
			Prices: map[BillingCycle]Money{
				CycleMonthly: {Amount: 0, Currency: "USD"},
				CycleYearly:  {Amount: 0, Currency: "USD"},
			},
		},
		{
			ID:   PlanPro,
			Name: "Pro",
			Limits: map[Feature]Limit{
				FeatureArticles: 100,
				FeatureImages:   50,
				FeatureCode:     100,
			},
			Prices: map[BillingCycle]Money{
				CycleMonthly: {Amount: 999, Currency: "USD"},
				CycleYearly:  {Amount: 9990, Currency: "USD"},
			},
		},
		{
			ID:   PlanBusiness,
			Name: "Business",
			Limits: map[Feature]Limit{
				FeatureArticles: Unlimited,
				FeatureImages:   Unlimited,
				FeatureCode:     Unlimited,
			},
			Prices: map[BillingCycle]Money{
				CycleMonthly: {Amount: 2999, Currency: "USD"},
				CycleYearly:  {Amount: 29990, Currency: "USD"},
			},
		},
	}
}
