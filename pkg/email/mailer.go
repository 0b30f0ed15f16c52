package email

import (
	"context"
	"net/mail"
)

// EmailSender sends transactional email.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams describes one outbound message.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"` // provider-side analytics tag
}

// Validate checks the parameters before they reach a provider.
func (p SendEmailParams) Validate() error {
	if _, err := mail.ParseAddress(p.SendTo); err != nil {
		return ErrInvalidRecipient
	}
	if p.Subject == "" {
		return ErrEmptySubject
	}
	if p.BodyHTML == "" {
		return ErrEmptyBody
	}
	return nil
}
