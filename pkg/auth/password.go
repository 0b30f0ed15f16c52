package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/formexa/formexa/pkg/billing"
	"github.com/formexa/formexa/pkg/logger"
	"github.com/formexa/formexa/pkg/plans"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input beyond 72 bytes; reject rather than truncate.
	maxPasswordLength = 72
)

// PasswordAuthenticator defines password-based authentication operations.
type PasswordAuthenticator interface {
	Register(ctx context.Context, email, password string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*User, error)

	StartEmailVerification(ctx context.Context, email string) (string, error)
	VerifyEmail(ctx context.Context, token string) (*User, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Storage defines the persistence operations required for password
// authentication. The Consume* operations must atomically look the token up
// and invalidate it so a token is usable at most once.
type Storage interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	StorePasswordHash(ctx context.Context, userID uuid.UUID, hash []byte) error
	GetPasswordHash(ctx context.Context, userID uuid.UUID) ([]byte, error)

	StoreVerificationToken(ctx context.Context, userID uuid.UUID, tokenHash string) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string) (*User, error)
	StoreResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)
}

type passwordService struct {
	storage    Storage
	bcryptCost int
	logger     *slog.Logger

	// afterRegister runs synchronously after the user is persisted; a
	// failure rolls the registration back. Used to provision the user's
	// usage ledger.
	afterRegister func(ctx context.Context, user *User) error
}

// PasswordOption configures the password service.
type PasswordOption func(*passwordService)

// WithPasswordLogger sets a custom logger for the service.
func WithPasswordLogger(log *slog.Logger) PasswordOption {
	return func(s *passwordService) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithBcryptCost sets the bcrypt cost for password hashing.
func WithBcryptCost(cost int) PasswordOption {
	return func(s *passwordService) { s.bcryptCost = cost }
}

// WithAfterRegister sets a hook that runs after the user record is created
// and before Register returns. If it fails the user record is removed and
// registration fails.
func WithAfterRegister(fn func(context.Context, *User) error) PasswordOption {
	return func(s *passwordService) { s.afterRegister = fn }
}

// NewPasswordService creates a password authentication service.
func NewPasswordService(storage Storage, opts ...PasswordOption) PasswordAuthenticator {
	if storage == nil {
		panic("auth: storage is required")
	}
	s := &passwordService{
		storage:    storage,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new account on the free tier with no subscription.
func (s *passwordService) Register(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	if len(password) > maxPasswordLength {
		return nil, ErrPasswordTooLong
	}

	_, err := s.storage.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailAlreadyExists
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:                 uuid.New(),
		Email:              email,
		Plan:               plans.PlanFree,
		SubscriptionStatus: billing.StatusInactive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.storage.StorePasswordHash(ctx, user.ID, hash); err != nil {
		s.rollback(ctx, user, err)
		return nil, fmt.Errorf("failed to save password: %w", err)
	}

	if s.afterRegister != nil {
		if err := s.afterRegister(ctx, user); err != nil {
			s.rollback(ctx, user, err)
			return nil, fmt.Errorf("failed to provision account: %w", err)
		}
	}

	return user, nil
}

func (s *passwordService) rollback(ctx context.Context, user *User, cause error) {
	if err := s.storage.DeleteUser(ctx, user.ID); err != nil {
		s.logger.Error("failed to clean up user after registration failure",
			logger.UserID(user.ID.String()),
			logger.Error(err),
			slog.Any("cause", cause),
			logger.Component("auth"),
		)
	}
}

// Authenticate verifies email and password.
func (s *passwordService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	hash, err := s.storage.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUser loads an account by id.
func (s *passwordService) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.storage.GetUserByID(ctx, userID)
}
