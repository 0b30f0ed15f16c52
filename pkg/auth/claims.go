package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/jwt"
)

// DefaultTokenTTL is how long access tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

// AccessClaims is the JWT payload issued at login. Subject carries the user
// id; everything else is standard.
type AccessClaims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
}

// NewAccessClaims builds claims for a user with the given lifetime.
func NewAccessClaims(user *User, ttl time.Duration) AccessClaims {
	now := time.Now()
	return AccessClaims{
		StandardClaims: jwt.StandardClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    "formexa",
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		Email: user.Email,
	}
}

// UserID parses the subject back into a user id.
func (c AccessClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
