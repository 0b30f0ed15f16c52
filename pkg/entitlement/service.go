package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/plans"
)

// Service is the entitlement guard: it decides whether a metered action is
// allowed under the user's plan and records consumption.
//
// The contract with callers performing an external generation call is:
// CanUse before the call, Consume only after the call is known to have
// succeeded. A failed generation must never consume quota.
type Service struct {
	store   Store
	catalog *plans.Catalog
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates an entitlement service. Panics on nil dependencies to
// fail fast at startup.
func NewService(store Store, catalog *plans.Catalog, opts ...Option) *Service {
	if store == nil {
		panic("entitlement: Store is required")
	}
	if catalog == nil {
		panic("entitlement: Catalog is required")
	}

	s := &Service{
		store:   store,
		catalog: catalog,
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResetIfDue zeroes the user's counters when the stored anchor predates the
// current calendar month. Idempotent; always runs before a limit check so
// stale counters never deny a fresh period ("reset-then-check").
func (s *Service) ResetIfDue(ctx context.Context, userID uuid.UUID) error {
	return s.store.ResetIfDue(ctx, userID, PeriodStart(s.now()))
}

// CanUse reports whether one more use of feature is allowed under plan.
// Resets the period first, never mutates counters.
func (s *Service) CanUse(ctx context.Context, userID uuid.UUID, plan plans.PlanID, feature plans.Feature) (bool, error) {
	if !feature.Valid() {
		return false, fmt.Errorf("%w: %s", ErrInvalidFeature, feature)
	}

	limit, err := s.catalog.LimitFor(plan, feature)
	if err != nil {
		return false, err
	}
	if limit.IsUnlimited() {
		return true, nil
	}

	if err := s.ResetIfDue(ctx, userID); err != nil {
		return false, err
	}

	ledger, err := s.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return limit.Allows(ledger.Count(feature)), nil
}

// Consume records one use of feature, failing with *LimitExceededError and
// mutating nothing when the plan's limit is reached. The reset and the
// check-and-increment are each atomic per user, closing the race where two
// concurrent requests both observe usage below the limit.
func (s *Service) Consume(ctx context.Context, userID uuid.UUID, plan plans.PlanID, feature plans.Feature) error {
	if !feature.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidFeature, feature)
	}

	limit, err := s.catalog.LimitFor(plan, feature)
	if err != nil {
		return err
	}

	if err := s.ResetIfDue(ctx, userID); err != nil {
		return err
	}

	current, err := s.store.IncrementWithin(ctx, userID, feature, limit)
	if err != nil {
		if errors.Is(err, ErrLimitExceeded) {
			return &LimitExceededError{Feature: feature, Limit: limit, Current: current}
		}
		return err
	}

	s.log.DebugContext(ctx, "usage consumed",
		slog.String("feature", string(feature)),
		slog.Int64("count", current),
		slog.String("user_id", userID.String()),
	)
	return nil
}

// Usage returns the user's current counters after applying any due reset,
// so callers never render last period's numbers.
func (s *Service) Usage(ctx context.Context, userID uuid.UUID) (map[plans.Feature]int64, error) {
	if err := s.ResetIfDue(ctx, userID); err != nil {
		return nil, err
	}

	ledger, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts := make(map[plans.Feature]int64, len(plans.Features()))
	for _, f := range plans.Features() {
		counts[f] = ledger.Count(f)
	}
	return counts, nil
}
