package billing

import "errors"

var (
	// ErrNoActiveSubscription is returned by Cancel when the user has nothing
	// active to cancel. User-facing and recoverable.
	ErrNoActiveSubscription = errors.New("billing: no active subscription to cancel")

	ErrSubscriptionNotFound = errors.New("billing: subscription not found")
	ErrUserNotFound         = errors.New("billing: user not found")
	ErrVersionConflict      = errors.New("billing: subscription was modified concurrently")
	ErrInvalidBillingCycle  = errors.New("billing: invalid billing cycle")

	// Provider errors.
	ErrMissingAPIKey             = errors.New("billing: provider API key is required")
	ErrMissingWebhookSecret      = errors.New("billing: provider webhook secret is required")
	ErrInvalidProviderEnv        = errors.New("billing: invalid provider environment")
	ErrWebhookVerificationFailed = errors.New("billing: webhook signature verification failed")
	ErrNoCheckoutURL             = errors.New("billing: no checkout URL returned from provider")
)
