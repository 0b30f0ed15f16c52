package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type resetEntry struct {
	userID  uuid.UUID
	expires time.Time
}

// memoryStorage is an in-memory Storage for tests and local development.
type memoryStorage struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*User
	hashes       map[uuid.UUID][]byte
	verifyTokens map[string]uuid.UUID
	resetTokens  map[string]resetEntry
}

// NewMemoryStorage creates an empty in-memory user storage.
func NewMemoryStorage() Storage {
	return &memoryStorage{
		users:        make(map[uuid.UUID]*User),
		hashes:       make(map[uuid.UUID][]byte),
		verifyTokens: make(map[string]uuid.UUID),
		resetTokens:  make(map[string]resetEntry),
	}
}

func (m *memoryStorage) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrEmailAlreadyExists
		}
	}
	c := *user
	m.users[user.ID] = &c
	return nil
}

func (m *memoryStorage) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *memoryStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memoryStorage) DeleteUser(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.users, id)
	delete(m.hashes, id)
	return nil
}

func (m *memoryStorage) StorePasswordHash(ctx context.Context, userID uuid.UUID, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return ErrUserNotFound
	}
	m.hashes[userID] = append([]byte(nil), hash...)
	return nil
}

func (m *memoryStorage) GetPasswordHash(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash, ok := m.hashes[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return append([]byte(nil), hash...), nil
}

func (m *memoryStorage) StoreVerificationToken(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return ErrUserNotFound
	}
	for hash, id := range m.verifyTokens {
		if id == userID {
			delete(m.verifyTokens, hash)
		}
	}
	m.verifyTokens[tokenHash] = userID
	return nil
}

func (m *memoryStorage) ConsumeVerificationToken(ctx context.Context, tokenHash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.verifyTokens[tokenHash]
	if !ok {
		return nil, ErrInvalidToken
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrInvalidToken
	}
	delete(m.verifyTokens, tokenHash)
	u.EmailVerified = true
	u.UpdatedAt = time.Now().UTC()
	c := *u
	return &c, nil
}

func (m *memoryStorage) StoreResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return ErrUserNotFound
	}
	for hash, entry := range m.resetTokens {
		if entry.userID == userID {
			delete(m.resetTokens, hash)
		}
	}
	m.resetTokens[tokenHash] = resetEntry{userID: userID, expires: expires}
	return nil
}

func (m *memoryStorage) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.resetTokens[tokenHash]
	if !ok {
		return nil, ErrInvalidToken
	}
	delete(m.resetTokens, tokenHash)
	if now.After(entry.expires) {
		return nil, ErrInvalidToken
	}
	u, ok := m.users[entry.userID]
	if !ok {
		return nil, ErrInvalidToken
	}
	c := *u
	return &c, nil
}
