package auth

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formexa/formexa/pkg/billing"
	"github.com/formexa/formexa/pkg/plans"
)

// User is an application account. Plan and SubscriptionStatus are mirrors
// maintained by the billing layer; the entitlement layer reads them to pick
// the user's limits.
type User struct {
	ID                 uuid.UUID
	Email              string
	EmailVerified      bool
	Plan               plans.PlanID
	SubscriptionStatus billing.Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NormalizeEmail lowercases and trims an address so lookups and webhook
// correlation agree on one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	// ParseAddress accepts bare hostnames; require a dotted domain.
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}
