package billing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/plans"
)

// suspensionThreshold is the number of consecutive payment denials after
// which an active subscription is suspended.
const suspensionThreshold = 3

// renewalPeriod is the fixed window an activation grants until the next
// renewal. The processor sends a fresh activation on every successful charge,
// which extends the date again, so the cycle only affects pricing.
const renewalPeriod = 30 * 24 * time.Hour

// Processor applies payment-processor webhooks to subscription records.
// Delivery is at-least-once and possibly reordered, so every handler is
// idempotent: deliveries already present in the record's audit log are
// no-ops, and transitions guard on current state instead of assuming order.
//
// Handle returns an error only for infrastructure failures, where a provider
// redelivery is safe and wanted. Events that cannot be matched to any record
// are logged, counted and acknowledged; they are never worth a retry.
type Processor struct {
	store SubscriptionStore
	users UserDirectory
	log   *slog.Logger
	clock func() time.Time

	unresolved atomic.Uint64
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the logger.
func WithProcessorLogger(log *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithProcessorClock overrides the time source. Intended for tests.
func WithProcessorClock(clock func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewProcessor creates a webhook processor. Panics if store or users is nil.
func NewProcessor(store SubscriptionStore, users UserDirectory, opts ...ProcessorOption) *Processor {
	if store == nil {
		panic("billing: store is required")
	}
	if users == nil {
		panic("billing: user directory is required")
	}

	p := &Processor{
		store: store,
		users: users,
		log:   slog.Default(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Unresolved reports how many events could not be matched to any record
// since the processor started.
func (p *Processor) Unresolved() uint64 {
	return p.unresolved.Load()
}

// Handle applies one normalized webhook event.
func (p *Processor) Handle(ctx context.Context, ev *WebhookEvent) error {
	switch ev.Type {
	case EventSubscriptionCreated:
		return p.handleCreated(ctx, ev)
	case EventSubscriptionActivated:
		return p.handleActivated(ctx, ev)
	case EventSubscriptionCancelled:
		return p.handleCancelled(ctx, ev)
	case EventPaymentDenied:
		return p.handlePaymentDenied(ctx, ev)
	default:
		return p.handleUnknown(ctx, ev)
	}
}

// handleCreated links the processor's subscription id to the user's pending
// record and opens the subscription. The event carries no internal ids, so
// the subscriber email is the correlation key.
func (p *Processor) handleCreated(ctx context.Context, ev *WebhookEvent) error {
	sub, err := p.store.GetByProviderSubID(ctx, ev.SubscriptionID)
	if err == nil {
		// The id is already linked; this is a replay or arrived after an
		// out-of-order activation that did the linking.
		_, err = p.apply(ctx, sub.ID, func(rec *Subscription) bool {
			if rec.HasEvent(ev.EventID) {
				return false
			}
			rec.AppendEvent(p.auditEvent(ev))
			return true
		})
		return err
	}
	if !errors.Is(err, ErrSubscriptionNotFound) {
		return err
	}

	sub, derr := p.resolveByEmail(ctx, ev.SubscriberEmail)
	if derr != nil {
		if errors.Is(derr, ErrUserNotFound) || errors.Is(derr, ErrSubscriptionNotFound) {
			p.drop(ctx, ev, derr)
			return nil
		}
		return derr
	}

	at := p.eventTime(ev)
	_, err = p.apply(ctx, sub.ID, func(rec *Subscription) bool {
		if rec.HasEvent(ev.EventID) {
			return false
		}
		rec.AppendEvent(p.auditEvent(ev))
		if rec.IsCancelled() {
			return true
		}
		if rec.ProviderSubID == "" {
			rec.ProviderSubID = ev.SubscriptionID
		}
		rec.Status = StatusActive
		if rec.StartDate == nil {
			rec.StartDate = &at
		}
		return true
	})
	return err
}

// handleActivated moves the record to active and mirrors the paid plan onto
// the user. If the creation event has not arrived yet, the pending record is
// resolved by subscriber email and linked here.
func (p *Processor) handleActivated(ctx context.Context, ev *WebhookEvent) error {
	sub, err := p.store.GetByProviderSubID(ctx, ev.SubscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		sub, err = p.resolveByEmail(ctx, ev.SubscriberEmail)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrSubscriptionNotFound) {
				p.drop(ctx, ev, err)
				return nil
			}
			return err
		}
	} else if err != nil {
		return err
	}

	at := p.eventTime(ev)
	activated := false
	sub, err = p.apply(ctx, sub.ID, func(rec *Subscription) bool {
		activated = false
		if rec.HasEvent(ev.EventID) {
			return false
		}
		rec.AppendEvent(p.auditEvent(ev))
		if rec.IsCancelled() {
			// Cancellation is terminal; late activations only leave a trace.
			return true
		}
		if rec.ProviderSubID == "" {
			rec.ProviderSubID = ev.SubscriptionID
		}
		rec.Status = StatusActive
		if rec.StartDate == nil {
			rec.StartDate = &at
		}
		renewal := at.Add(renewalPeriod)
		rec.RenewalDate = &renewal
		rec.FailedPayments = 0
		activated = true
		return true
	})
	if err != nil {
		return err
	}

	if activated {
		if err := p.users.SetPlanStatus(ctx, sub.UserID, sub.Plan, StatusActive); err != nil {
			return err
		}
		p.log.InfoContext(ctx, "subscription activated",
			slog.String("user_id", sub.UserID.String()),
			slog.String("plan", string(sub.Plan)),
		)
	}
	return nil
}

// handleCancelled marks the record cancelled and downgrades the user to the
// free tier. Cancellations initiated in-app arrive here afterwards from the
// processor; those deliveries only append to the audit log.
func (p *Processor) handleCancelled(ctx context.Context, ev *WebhookEvent) error {
	sub, err := p.store.GetByProviderSubID(ctx, ev.SubscriptionID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			p.drop(ctx, ev, err)
			return nil
		}
		return err
	}

	at := p.eventTime(ev)
	cancelled := false
	sub, err = p.apply(ctx, sub.ID, func(rec *Subscription) bool {
		cancelled = false
		if rec.HasEvent(ev.EventID) {
			return false
		}
		rec.AppendEvent(p.auditEvent(ev))
		if rec.IsCancelled() {
			return true
		}
		rec.Status = StatusCancelled
		rec.CancelledAt = &at
		rec.EndDate = &at
		cancelled = true
		return true
	})
	if err != nil {
		return err
	}

	if cancelled {
		if err := p.users.SetPlanStatus(ctx, sub.UserID, plans.PlanFree, StatusCancelled); err != nil {
			return err
		}
		p.log.InfoContext(ctx, "subscription cancelled by processor",
			slog.String("user_id", sub.UserID.String()),
		)
	}
	return nil
}

// handlePaymentDenied records the denial and suspends the subscription after
// suspensionThreshold consecutive denials. A later activation clears the
// counter.
func (p *Processor) handlePaymentDenied(ctx context.Context, ev *WebhookEvent) error {
	sub, err := p.store.GetByProviderSubID(ctx, ev.SubscriptionID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			p.drop(ctx, ev, err)
			return nil
		}
		return err
	}

	suspended := false
	sub, err = p.apply(ctx, sub.ID, func(rec *Subscription) bool {
		suspended = false
		if rec.HasEvent(ev.EventID) {
			return false
		}
		rec.AppendEvent(p.auditEvent(ev))
		if rec.IsCancelled() {
			return true
		}
		rec.FailedPayments++
		if rec.FailedPayments >= suspensionThreshold && rec.Status == StatusActive {
			rec.Status = StatusSuspended
			suspended = true
		}
		return true
	})
	if err != nil {
		return err
	}

	p.log.WarnContext(ctx, "payment denied",
		slog.String("user_id", sub.UserID.String()),
		slog.Int("failed_payments", sub.FailedPayments),
	)
	if suspended {
		if err := p.users.SetPlanStatus(ctx, sub.UserID, sub.Plan, StatusSuspended); err != nil {
			return err
		}
		p.log.WarnContext(ctx, "subscription suspended",
			slog.String("user_id", sub.UserID.String()),
		)
	}
	return nil
}

// handleUnknown keeps a trace of unmapped event types on the record when one
// can be resolved, and drops them otherwise.
func (p *Processor) handleUnknown(ctx context.Context, ev *WebhookEvent) error {
	sub, err := p.store.GetByProviderSubID(ctx, ev.SubscriptionID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			p.drop(ctx, ev, err)
			return nil
		}
		return err
	}
	_, err = p.apply(ctx, sub.ID, func(rec *Subscription) bool {
		if rec.HasEvent(ev.EventID) {
			return false
		}
		rec.AppendEvent(p.auditEvent(ev))
		return true
	})
	return err
}

// resolveByEmail finds the pending record for the user with the given
// billing email.
func (p *Processor) resolveByEmail(ctx context.Context, email string) (*Subscription, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrUserNotFound
	}
	acc, err := p.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return p.store.GetPendingByUser(ctx, acc.ID)
}

// drop acknowledges an event that matches no record.
func (p *Processor) drop(ctx context.Context, ev *WebhookEvent, reason error) {
	p.unresolved.Add(1)
	p.log.WarnContext(ctx, "webhook event matches no subscription",
		slog.String("event_id", ev.EventID),
		slog.String("event_type", string(ev.Type)),
		slog.String("provider_sub_id", ev.SubscriptionID),
		slog.Any("error", reason),
	)
}

func (p *Processor) apply(ctx context.Context, id uuid.UUID, fn func(*Subscription) bool) (*Subscription, error) {
	return applyUpdate(ctx, p.store, p.clock, id, fn)
}

func (p *Processor) auditEvent(ev *WebhookEvent) Event {
	return Event{
		ID:        ev.EventID,
		Type:      string(ev.Type),
		Timestamp: p.eventTime(ev),
		Payload:   ev.Raw,
	}
}

// eventTime prefers the provider timestamp so replays of the same delivery
// produce the same record.
func (p *Processor) eventTime(ev *WebhookEvent) time.Time {
	if !ev.OccurredAt.IsZero() {
		return ev.OccurredAt.UTC()
	}
	return p.clock().UTC()
}
