package billing

import (
	"context"
	"time"
)

// BillingProvider is the boundary to the payment processor. The application
// never talks to the processor directly; it redirects users to a hosted
// checkout and reacts to webhooks. Implementations use the official SDK and
// keep provider quirks internal.
type BillingProvider interface {
	// CreateCheckoutLink creates a hosted checkout session for a paid plan.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// GetCustomerPortalLink returns a temporary link where the customer can
	// update payment methods or cancel on the provider side.
	GetCustomerPortalLink(ctx context.Context, sub *Subscription) (*PortalLink, error)

	// ParseWebhook verifies the signature and normalizes the payload. A
	// verification failure must be returned as an error so the HTTP layer can
	// reject spoofed deliveries before they reach the processor.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutRequest contains the data needed to open a checkout session.
type CheckoutRequest struct {
	PriceID    string // provider's price identifier for plan+cycle
	CustomerID string // internal user id, round-tripped through custom data
	Email      string // billing email, used to correlate webhooks back to the user
	SuccessURL string
	CancelURL  string
}

// CheckoutLink is a hosted checkout session.
type CheckoutLink struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// PortalLink is a pre-authenticated customer portal session.
type PortalLink struct {
	URL       string
	CancelURL string
	ExpiresAt time.Time
}
