package plans

import "errors"

var (
	ErrPlanNotFound             = errors.New("plans: plan not found")
	ErrInvalidFeature           = errors.New("plans: invalid feature")
	ErrInvalidBillingCycle      = errors.New("plans: invalid billing cycle")
	ErrInvalidPlanConfiguration = errors.New("plans: invalid plan configuration")
	ErrFailedToLoadPlans        = errors.New("plans: failed to load plans")
)
