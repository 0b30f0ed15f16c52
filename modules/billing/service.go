package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formexa/formexa/core"
	"github.com/formexa/formexa/pkg/auth"
	billingpkg "github.com/formexa/formexa/pkg/billing"
	"github.com/formexa/formexa/pkg/email"
	"github.com/formexa/formexa/pkg/jwt"
	"github.com/formexa/formexa/pkg/logger"
	"github.com/formexa/formexa/pkg/plans"
)

// maxWebhookBody bounds webhook payload reads.
const maxWebhookBody = 1 << 20

// UserProvider resolves the authenticated user.
type UserProvider interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*auth.User, error)
}

// Service exposes subscription management endpoints and the payment
// processor webhook.
type Service struct {
	billing   *billingpkg.Service
	processor *billingpkg.Processor
	provider  billingpkg.BillingProvider
	users     UserProvider
	notifier  *email.Notifier
	log       *slog.Logger
}

// NewService creates the billing module.
func NewService(b *billingpkg.Service, p *billingpkg.Processor, provider billingpkg.BillingProvider, users UserProvider, notifier *email.Notifier, log *slog.Logger) *Service {
	if b == nil || p == nil || provider == nil || users == nil {
		panic("billing: service, processor, provider and user provider are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{billing: b, processor: p, provider: provider, users: users, notifier: notifier, log: log}
}

// Router mounts the authenticated subscription routes.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/subscribe", s.subscribe)
	r.Post("/cancel", s.cancel)
	r.Get("/subscription", s.subscription)
	return r
}

// WebhookRouter mounts the public webhook endpoint. Authenticity comes from
// the provider signature, not from a bearer token.
func (s *Service) WebhookRouter() http.Handler {
	r := chi.NewRouter()
	r.Post("/paddle", s.webhook)
	return r
}

type subscribeRequest struct {
	Plan  string `json:"plan"`
	Cycle string `json:"cycle"`
}

type subscriptionResponse struct {
	Plan        string     `json:"plan"`
	Status      string     `json:"status"`
	Cycle       string     `json:"cycle,omitempty"`
	PriceCents  int64      `json:"price_cents,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	RenewalDate *time.Time `json:"renewal_date,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func toSubscriptionResponse(sub *billingpkg.Subscription) subscriptionResponse {
	return subscriptionResponse{
		Plan:        string(sub.Plan),
		Status:      string(sub.Status),
		Cycle:       string(sub.BillingCycle),
		PriceCents:  sub.Price.Amount,
		Currency:    sub.Price.Currency,
		StartDate:   sub.StartDate,
		RenewalDate: sub.RenewalDate,
		CancelledAt: sub.CancelledAt,
	}
}

func (s *Service) subscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	planID := plans.PlanID(req.Plan)
	if !planID.Valid() {
		core.Respond(w, r, core.JSONError(core.NewValidationError("plan", "must be one of free, pro, business")))
		return
	}
	cycle := plans.BillingCycle(req.Cycle)
	if planID.IsPaid() && !cycle.Valid() {
		core.Respond(w, r, core.JSONError(core.NewValidationError("cycle", "must be monthly or yearly")))
		return
	}

	account := &billingpkg.Account{ID: user.ID, Email: user.Email, Plan: user.Plan, Status: user.SubscriptionStatus}
	intent, err := s.billing.Initiate(r.Context(), account, planID, cycle)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if intent.Checkout == nil {
		core.Respond(w, r, core.JSON("subscribed", map[string]string{"plan": string(planID), "status": string(billingpkg.StatusActive)}, nil))
		return
	}

	core.Respond(w, r, core.JSON("checkout_created", map[string]any{
		"checkout_url": intent.Checkout.URL,
		"expires_at":   intent.Checkout.ExpiresAt,
		"subscription": toSubscriptionResponse(intent.Subscription),
	}, nil))
}

func (s *Service) cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	sub, err := s.billing.Cancel(r.Context(), user.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if s.notifier != nil {
		s.notifier.SubscriptionCancelled(r.Context(), user.Email)
	}

	core.Respond(w, r, core.JSON("cancelled", toSubscriptionResponse(sub), nil))
}

func (s *Service) subscription(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	sub, err := s.billing.Status(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, billingpkg.ErrSubscriptionNotFound) {
			// No record yet; the mirrored plan on the user is the answer.
			core.Respond(w, r, core.JSON("subscription", subscriptionResponse{
				Plan:   string(user.Plan),
				Status: string(user.SubscriptionStatus),
			}, nil))
			return
		}
		s.respondError(w, r, err)
		return
	}

	core.Respond(w, r, core.JSON("subscription", toSubscriptionResponse(sub), nil))
}

// webhook verifies, normalizes and applies one provider delivery. Events
// that match no record are acknowledged anyway; only infrastructure
// failures return a retryable status.
func (s *Service) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	event, err := s.provider.ParseWebhook(r.Context(), payload, r.Header.Get("Paddle-Signature"))
	if err != nil {
		s.log.WarnContext(r.Context(), "webhook rejected", logger.Error(err), logger.Component("billing"))
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	if err := s.processor.Handle(r.Context(), event); err != nil {
		s.log.ErrorContext(r.Context(), "webhook processing failed",
			slog.String("event_id", event.EventID),
			logger.Error(err),
			logger.Component("billing"),
		)
		core.Respond(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	s.notifyWebhook(r.Context(), event)
	core.Respond(w, r, core.JSON("ok", nil, nil))
}

// notifyWebhook sends lifecycle emails for applied webhook transitions.
// Best-effort: a lookup failure only means no email goes out.
func (s *Service) notifyWebhook(ctx context.Context, ev *billingpkg.WebhookEvent) {
	if s.notifier == nil {
		return
	}
	switch ev.Type {
	case billingpkg.EventSubscriptionActivated, billingpkg.EventPaymentDenied:
	default:
		return
	}

	sub, err := s.billing.ByProviderSubID(ctx, ev.SubscriptionID)
	if err != nil {
		return
	}
	user, err := s.users.GetUser(ctx, sub.UserID)
	if err != nil {
		return
	}

	switch ev.Type {
	case billingpkg.EventSubscriptionActivated:
		if sub.IsActive() {
			s.notifier.SubscriptionActivated(ctx, user.Email, sub.Plan)
		}
	case billingpkg.EventPaymentDenied:
		s.notifier.PaymentProblem(ctx, user.Email)
	}
}

func (s *Service) currentUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	claims, ok := jwt.GetClaims[auth.AccessClaims](r.Context())
	if !ok {
		core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
		return nil, false
	}
	userID, err := claims.UserID()
	if err != nil {
		core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
		return nil, false
	}

	user, err := s.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			core.Respond(w, r, core.JSONError(core.ErrUnauthorized))
		} else {
			s.respondError(w, r, err)
		}
		return nil, false
	}
	return user, true
}

func (s *Service) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, billingpkg.ErrNoActiveSubscription):
		core.Respond(w, r, core.JSONError(core.NewHTTPError(http.StatusConflict, "no_active_subscription")))
	case errors.Is(err, plans.ErrPlanNotFound), errors.Is(err, plans.ErrInvalidBillingCycle):
		core.Respond(w, r, core.JSONError(core.ErrBadRequest))
	default:
		s.log.ErrorContext(r.Context(), "billing request failed", logger.Error(err), logger.Component("billing"))
		core.Respond(w, r, core.JSONError(core.ErrInternalServerError))
	}
}
