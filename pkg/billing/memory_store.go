package billing

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/plans"
)

// memoryStore is an in-memory SubscriptionStore for tests and local
// development. A single mutex serializes all access.
type memoryStore struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*Subscription
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() SubscriptionStore {
	return &memoryStore{subs: make(map[uuid.UUID]*Subscription)}
}

func cloneSubscription(s *Subscription) *Subscription {
	c := *s
	c.Events = make([]Event, len(s.Events))
	copy(c.Events, s.Events)
	return &c
}

func (m *memoryStore) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return cloneSubscription(sub), nil
}

func (m *memoryStore) GetByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *Subscription
	for _, sub := range m.subs {
		if sub.UserID != userID {
			continue
		}
		if sub.Status == StatusInactive || sub.Status == StatusCancelled {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, ErrSubscriptionNotFound
	}
	return cloneSubscription(latest), nil
}

func (m *memoryStore) GetByProviderSubID(ctx context.Context, providerSubID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if providerSubID == "" {
		return nil, ErrSubscriptionNotFound
	}
	for _, sub := range m.subs {
		if sub.ProviderSubID == providerSubID {
			return cloneSubscription(sub), nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (m *memoryStore) GetPendingByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *Subscription
	for _, sub := range m.subs {
		if sub.UserID == userID && sub.Status == StatusPending {
			if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
				latest = sub
			}
		}
	}
	if latest == nil {
		return nil, ErrSubscriptionNotFound
	}
	return cloneSubscription(latest), nil
}

func (m *memoryStore) Create(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs[sub.ID] = cloneSubscription(sub)
	return nil
}

func (m *memoryStore) Update(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.subs[sub.ID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if current.Version != sub.Version {
		return ErrVersionConflict
	}
	stored := cloneSubscription(sub)
	stored.Version++
	m.subs[sub.ID] = stored
	sub.Version = stored.Version
	return nil
}

// memoryDirectory is an in-memory UserDirectory for tests.
type memoryDirectory struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Account
}

// NewMemoryDirectory creates a UserDirectory seeded with the given accounts.
func NewMemoryDirectory(accounts ...Account) UserDirectory {
	dir := &memoryDirectory{accounts: make(map[uuid.UUID]*Account, len(accounts))}
	for i := range accounts {
		acc := accounts[i]
		acc.Email = strings.ToLower(acc.Email)
		dir.accounts[acc.ID] = &acc
	}
	return dir
}

func (d *memoryDirectory) FindByEmail(ctx context.Context, email string) (*Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, acc := range d.accounts {
		if acc.Email == email {
			c := *acc
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (d *memoryDirectory) SetPlanStatus(ctx context.Context, userID uuid.UUID, plan plans.PlanID, status Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.accounts[userID]
	if !ok {
		return ErrUserNotFound
	}
	acc.Plan = plan
	acc.Status = status
	return nil
}
