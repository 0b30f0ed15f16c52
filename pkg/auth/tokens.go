package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ResetTokenTTL bounds how long a password reset link stays usable.
const ResetTokenTTL = time.Hour

const rawTokenBytes = 32

// newToken returns a random token and the hash that gets persisted. Only the
// hash is stored, so a leaked database cannot be replayed as reset links.
func newToken() (token, tokenHash string, err error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, HashToken(token), nil
}

// HashToken maps a raw token to its stored form.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// StartEmailVerification issues a fresh verification token for the user. The
// returned token goes into the verification email; reissuing invalidates any
// previous token.
func (s *passwordService) StartEmailVerification(ctx context.Context, email string) (string, error) {
	user, err := s.storage.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", err
	}
	if user.EmailVerified {
		return "", ErrEmailAlreadyVerified
	}

	token, hash, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.storage.StoreVerificationToken(ctx, user.ID, hash); err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}
	return token, nil
}

// VerifyEmail marks the account behind the token as verified and invalidates
// the token.
func (s *passwordService) VerifyEmail(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	return s.storage.ConsumeVerificationToken(ctx, HashToken(token))
}

// RequestPasswordReset issues a reset token for the account with the given
// email. Returns ErrUserNotFound for unknown addresses; the HTTP layer
// answers identically either way so addresses cannot be probed.
func (s *passwordService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.storage.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", err
	}

	token, hash, err := newToken()
	if err != nil {
		return "", err
	}
	expires := time.Now().UTC().Add(ResetTokenTTL)
	if err := s.storage.StoreResetToken(ctx, user.ID, hash, expires); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}
	return token, nil
}

// ResetPassword sets a new password for the account behind a valid,
// unexpired reset token. The token is single-use.
func (s *passwordService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	if len(newPassword) > maxPasswordLength {
		return ErrPasswordTooLong
	}
	if token == "" {
		return ErrInvalidToken
	}

	user, err := s.storage.ConsumeResetToken(ctx, HashToken(token), time.Now().UTC())
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.storage.StorePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to save password: %w", err)
	}
	return nil
}
