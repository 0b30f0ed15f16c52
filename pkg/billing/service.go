package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/plans"
)

// Service drives the subscription lifecycle: checkout initiation, user
// cancellation and status lookups. Webhook-driven transitions live in
// Processor; both share the same store and mirroring rules.
type Service struct {
	store    SubscriptionStore
	users    UserDirectory
	catalog  *plans.Catalog
	provider BillingProvider
	log      *slog.Logger
	clock    func() time.Time

	priceIDs   map[plans.PlanID]map[plans.BillingCycle]string
	successURL string
	cancelURL  string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPriceIDs sets the provider price identifiers per plan and cycle.
func WithPriceIDs(priceIDs map[plans.PlanID]map[plans.BillingCycle]string) ServiceOption {
	return func(s *Service) { s.priceIDs = priceIDs }
}

// WithCheckoutURLs sets the redirect targets for hosted checkout sessions.
func WithCheckoutURLs(successURL, cancelURL string) ServiceOption {
	return func(s *Service) {
		s.successURL = successURL
		s.cancelURL = cancelURL
	}
}

// NewService creates a billing service. Panics if any required dependency is
// nil; this is a programmer error surfaced at startup.
func NewService(store SubscriptionStore, users UserDirectory, catalog *plans.Catalog, provider BillingProvider, opts ...ServiceOption) *Service {
	if store == nil {
		panic("billing: store is required")
	}
	if users == nil {
		panic("billing: user directory is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	if provider == nil {
		panic("billing: billing provider is required")
	}

	s := &Service{
		store:    store,
		users:    users,
		catalog:  catalog,
		provider: provider,
		log:      slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckoutIntent is the result of initiating a subscription. For the free
// tier Checkout is nil and the plan change is already applied; for paid tiers
// the caller redirects the user to Checkout.URL and waits for webhooks.
type CheckoutIntent struct {
	Subscription *Subscription
	Checkout     *CheckoutLink
}

// Initiate starts a subscription to the given plan. Selecting the free tier
// applies immediately with no checkout. A paid tier creates a pending record
// priced from the catalog at initiation time and returns a hosted checkout
// link; any earlier pending record for the user is superseded.
func (s *Service) Initiate(ctx context.Context, account *Account, planID plans.PlanID, cycle plans.BillingCycle) (*CheckoutIntent, error) {
	plan, err := s.catalog.Plan(planID)
	if err != nil {
		return nil, err
	}

	if err := s.supersedePending(ctx, account.ID); err != nil {
		return nil, err
	}

	if !plan.ID.IsPaid() {
		if err := s.users.SetPlanStatus(ctx, account.ID, plan.ID, StatusActive); err != nil {
			return nil, err
		}
		s.log.InfoContext(ctx, "free plan applied", slog.String("user_id", account.ID.String()))
		return &CheckoutIntent{}, nil
	}

	price, err := s.catalog.PriceFor(plan.ID, cycle)
	if err != nil {
		return nil, err
	}
	priceID := s.priceIDs[plan.ID][cycle]
	if priceID == "" {
		return nil, fmt.Errorf("billing: no provider price configured for plan %s %s", plan.ID, cycle)
	}

	checkout, err := s.provider.CreateCheckoutLink(ctx, CheckoutRequest{
		PriceID:    priceID,
		CustomerID: account.ID.String(),
		Email:      account.Email,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("billing: failed to create checkout link: %w", err)
	}

	now := s.clock().UTC()
	sub := &Subscription{
		ID:           uuid.New(),
		UserID:       account.ID,
		Plan:         plan.ID,
		BillingCycle: cycle,
		Price:        price,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		Events: []Event{{
			Type:      "CHECKOUT.INITIATED",
			Timestamp: now,
			Payload:   map[string]any{"session_id": checkout.SessionID},
		}},
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "checkout initiated",
		slog.String("user_id", account.ID.String()),
		slog.String("plan", string(plan.ID)),
		slog.String("cycle", string(cycle)),
	)
	return &CheckoutIntent{Subscription: sub, Checkout: checkout}, nil
}

// Cancel terminates the user's current subscription and downgrades them to
// the free tier. The record keeps its full audit history; only its status
// changes. Suspended subscriptions can be cancelled too.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.store.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	if sub.Status != StatusActive && sub.Status != StatusSuspended {
		return nil, ErrNoActiveSubscription
	}

	now := s.clock().UTC()
	sub, err = s.applyUpdate(ctx, sub.ID, func(rec *Subscription) bool {
		if rec.IsCancelled() {
			return false
		}
		rec.Status = StatusCancelled
		rec.CancelledAt = &now
		rec.EndDate = &now
		rec.AppendEvent(Event{Type: "USER.CANCELLED", Timestamp: now})
		return true
	})
	if err != nil {
		return nil, err
	}

	if err := s.users.SetPlanStatus(ctx, userID, plans.PlanFree, StatusCancelled); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription cancelled by user", slog.String("user_id", userID.String()))
	return sub, nil
}

// Status returns the user's current subscription record, or
// ErrSubscriptionNotFound when there is none.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.store.GetByUser(ctx, userID)
}

// ByProviderSubID returns the record linked to a payment-processor
// subscription id.
func (s *Service) ByProviderSubID(ctx context.Context, providerSubID string) (*Subscription, error) {
	return s.store.GetByProviderSubID(ctx, providerSubID)
}

// PortalLink returns a customer portal link for the user's current
// subscription.
func (s *Service) PortalLink(ctx context.Context, userID uuid.UUID) (*PortalLink, error) {
	sub, err := s.store.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.provider.GetCustomerPortalLink(ctx, sub)
}

// supersedePending marks any earlier pending record for the user inactive so
// at most one checkout is in flight per user.
func (s *Service) supersedePending(ctx context.Context, userID uuid.UUID) error {
	pending, err := s.store.GetPendingByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}
	now := s.clock().UTC()
	_, err = s.applyUpdate(ctx, pending.ID, func(rec *Subscription) bool {
		if rec.Status != StatusPending {
			return false
		}
		rec.Status = StatusInactive
		rec.AppendEvent(Event{Type: "CHECKOUT.SUPERSEDED", Timestamp: now})
		return true
	})
	return err
}

// applyUpdate re-reads the record and re-applies fn on version conflicts so
// concurrent writers serialize per record. fn returns false when the record
// is already in the desired state and nothing should be written.
func (s *Service) applyUpdate(ctx context.Context, id uuid.UUID, fn func(*Subscription) bool) (*Subscription, error) {
	return applyUpdate(ctx, s.store, s.clock, id, fn)
}

const maxUpdateAttempts = 3

func applyUpdate(ctx context.Context, store SubscriptionStore, clock func() time.Time, id uuid.UUID, fn func(*Subscription) bool) (*Subscription, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		sub, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !fn(sub) {
			return sub, nil
		}
		sub.UpdatedAt = clock().UTC()
		if err := store.Update(ctx, sub); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return sub, nil
	}
	return nil, lastErr
}
