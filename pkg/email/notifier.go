package email

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"

	"github.com/formexa/formexa/pkg/logger"
	"github.com/formexa/formexa/pkg/plans"
)

// Notifier sends account and subscription lifecycle emails. Sending is
// best-effort: failures are logged and never block the triggering operation.
type Notifier struct {
	sender EmailSender
	log    *slog.Logger
}

// NewNotifier creates a lifecycle notifier.
func NewNotifier(sender EmailSender, log *slog.Logger) *Notifier {
	if sender == nil {
		panic("email: sender is required")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notifier{sender: sender, log: log}
}

// Welcome greets a newly registered account.
func (n *Notifier) Welcome(ctx context.Context, to string) {
	n.send(ctx, SendEmailParams{
		SendTo:   to,
		Subject:  "Welcome to Formexa",
		BodyHTML: fmt.Sprintf("<h1>Welcome!</h1><p>Your account %s is ready. You are on the free plan.</p>", html.EscapeString(to)),
		Tag:      "welcome",
	})
}

// VerifyEmail carries the address confirmation link.
func (n *Notifier) VerifyEmail(ctx context.Context, to, link string) {
	n.send(ctx, SendEmailParams{
		SendTo:   to,
		Subject:  "Confirm your email address",
		BodyHTML: fmt.Sprintf(`<p>Please confirm your email address by clicking <a href="%s">this link</a>.</p>`, html.EscapeString(link)),
		Tag:      "verify-email",
	})
}

// PasswordReset carries the reset link. The link expires after an hour.
func (n *Notifier) PasswordReset(ctx context.Context, to, link string) {
	n.send(ctx, SendEmailParams{
		SendTo:   to,
		Subject:  "Reset your password",
		BodyHTML: fmt.Sprintf(`<p>A password reset was requested for your account. <a href="%s">Choose a new password</a> within the next hour, or ignore this email.</p>`, html.EscapeString(link)),
		Tag:      "password-reset",
	})
}

// SubscriptionActivated confirms a paid plan is live.
func (n *Notifier) SubscriptionActivated(ctx context.Context, to string, plan plans.PlanID) {
	n.send(ctx, SendEmailParams{
		SendTo:   to,
		Subject:  "Your subscription is active",
		BodyHTML: fmt.Sprintf("<p>Your %s plan is now active. Enjoy the higher limits.</p>", html.EscapeString(string(plan))),
		Tag:      "subscription-activated",
	})
}

// SubscriptionCancelled confirms a cancellation.
func (n *Notifier) SubscriptionCancelled(ctx context.Context, to string) {
	n.send(ctx, SendEmailParams{
		SendTo:   to,
		Subject:  "Your subscription was cancelled",
		BodyHTML: "<p>Your subscription has been cancelled and your account moved to the free plan.</p>",
		Tag:      "subscription-cancelled",
	})
}

// PaymentProblem warns about repeated payment denials.
func (n *Notifier) PaymentProblem(ctx context.Context, to string) {
	n.send(ctx, SendEmailParams{
		SendTo:   to,
		Subject:  "Payment problem on your subscription",
		BodyHTML: "<p>We could not collect your latest payment. Please update your payment method to keep your plan.</p>",
		Tag:      "payment-problem",
	})
}

func (n *Notifier) send(ctx context.Context, params SendEmailParams) {
	if err := n.sender.SendEmail(ctx, params); err != nil {
		n.log.ErrorContext(ctx, "failed to send lifecycle email",
			slog.String("tag", params.Tag),
			logger.Error(err),
			logger.Component("email"),
		)
	}
}
