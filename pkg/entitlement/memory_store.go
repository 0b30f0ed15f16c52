package entitlement

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/plans"
)

// memoryStore is an in-memory Store for tests and development. A single
// mutex serializes all read-modify-write paths, giving the same atomicity
// the production store gets from conditional updates.
type memoryStore struct {
	mu      sync.Mutex
	ledgers map[uuid.UUID]*Ledger
}

// NewMemoryStore returns an empty in-memory ledger store.
func NewMemoryStore() Store {
	return &memoryStore{ledgers: make(map[uuid.UUID]*Ledger)}
}

func (s *memoryStore) Get(ctx context.Context, userID uuid.UUID) (*Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[userID]
	if !ok {
		return nil, ErrLedgerNotFound
	}
	return &Ledger{
		UserID:      ledger.UserID,
		Counts:      maps.Clone(ledger.Counts),
		ResetAnchor: ledger.ResetAnchor,
	}, nil
}

func (s *memoryStore) Create(ctx context.Context, ledger *Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledgers[ledger.UserID] = &Ledger{
		UserID:      ledger.UserID,
		Counts:      maps.Clone(ledger.Counts),
		ResetAnchor: ledger.ResetAnchor,
	}
	return nil
}

func (s *memoryStore) ResetIfDue(ctx context.Context, userID uuid.UUID, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[userID]
	if !ok {
		return ErrLedgerNotFound
	}
	if !ledger.ResetAnchor.Before(periodStart) {
		return nil
	}

	for f := range ledger.Counts {
		ledger.Counts[f] = 0
	}
	ledger.ResetAnchor = periodStart
	return nil
}

func (s *memoryStore) IncrementWithin(ctx context.Context, userID uuid.UUID, feature plans.Feature, limit plans.Limit) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[userID]
	if !ok {
		return 0, ErrLedgerNotFound
	}
	if ledger.Counts == nil {
		ledger.Counts = make(map[plans.Feature]int64)
	}

	current := ledger.Counts[feature]
	if !limit.Allows(current) {
		return current, ErrLimitExceeded
	}
	ledger.Counts[feature] = current + 1
	return current + 1, nil
}
