package plans

import (
	"context"
	"errors"
	"fmt"
)

// Source loads the plan catalog. Implementations must return every tier the
// application references; validation happens in NewCatalog.
type Source interface {
	Load(ctx context.Context) (map[PlanID]Plan, error)
}

// Catalog is an immutable lookup of plan limits and prices. A missing or
// malformed catalog is a configuration error surfaced at construction, never
// a runtime failure path.
type Catalog struct {
	plans map[PlanID]Plan
}

// NewCatalog loads and validates the catalog from src.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("plans: Source is required")
	}

	loaded, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if err := validate(loaded); err != nil {
		return nil, err
	}

	plans := make(map[PlanID]Plan, len(loaded))
	for id, plan := range loaded {
		plans[id] = plan.clone()
	}
	return &Catalog{plans: plans}, nil
}

// Plan returns the full plan definition for id.
func (c *Catalog) Plan(id PlanID) (Plan, error) {
	plan, ok := c.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return plan.clone(), nil
}

// LimitsFor returns the per-feature limits for a plan.
func (c *Catalog) LimitsFor(id PlanID) (map[Feature]Limit, error) {
	plan, ok := c.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	limits := make(map[Feature]Limit, len(plan.Limits))
	for f, l := range plan.Limits {
		limits[f] = l
	}
	return limits, nil
}

// LimitFor returns the limit for a single feature of a plan.
func (c *Catalog) LimitFor(id PlanID, feature Feature) (Limit, error) {
	plan, ok := c.plans[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	limit, ok := plan.Limits[feature]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidFeature, feature)
	}
	return limit, nil
}

// PriceFor returns the price of a plan for the given billing cycle.
func (c *Catalog) PriceFor(id PlanID, cycle BillingCycle) (Money, error) {
	plan, ok := c.plans[id]
	if !ok {
		return Money{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	price, ok := plan.Prices[cycle]
	if !ok {
		return Money{}, fmt.Errorf("%w: %s/%s", ErrInvalidBillingCycle, id, cycle)
	}
	return price, nil
}

// validate rejects catalogs that would cause billing or quota bugs at
// runtime: missing tiers, unknown features, negative limits, missing prices.
func validate(loaded map[PlanID]Plan) error {
	for _, required := range []PlanID{PlanFree, PlanPro, PlanBusiness} {
		if _, ok := loaded[required]; !ok {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("missing plan %q", required))
		}
	}

	for id, plan := range loaded {
		if plan.ID != id {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan ID mismatch: map key %s != plan.ID %s", id, plan.ID))
		}
		if !id.Valid() {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("unknown plan %q", id))
		}
		for _, feature := range Features() {
			limit, ok := plan.Limits[feature]
			if !ok {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s is missing a limit for %s", id, feature))
			}
			if limit < Unlimited {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has negative limit %d for %s", id, limit, feature))
			}
		}
		for feature := range plan.Limits {
			if !feature.Valid() {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has unknown feature %q", id, feature))
			}
		}
		for _, cycle := range []BillingCycle{CycleMonthly, CycleYearly} {
			price, ok := plan.Prices[cycle]
			if !ok {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s is missing a %s price", id, cycle))
			}
			if price.Amount < 0 || price.Currency == "" {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has an invalid %s price", id, cycle))
			}
		}
	}
	return nil
}
