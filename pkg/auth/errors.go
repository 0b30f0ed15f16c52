package auth

import "errors"

var (
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrEmailAlreadyExists = errors.New("auth: email already exists")
	ErrInvalidEmail       = errors.New("auth: invalid email address")

	// ErrInvalidCredentials is returned for any authentication failure so
	// responses cannot be used to enumerate registered emails.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	ErrWeakPassword    = errors.New("auth: password does not meet security requirements")
	ErrPasswordTooLong = errors.New("auth: password is too long")

	ErrInvalidToken         = errors.New("auth: invalid or expired token")
	ErrEmailAlreadyVerified = errors.New("auth: email already verified")
)
