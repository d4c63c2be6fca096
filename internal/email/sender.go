// Package email delivers outbound mail: follow-up sequence steps to
// contacts and alerts to the sales team. Delivery goes through the tenant's
// own SMTP server or the Brevo transactional API, selected by configuration.
package email

import (
	"context"
	"fmt"

	"replyflow_backend/internal/config"
)

// Sender delivers a rendered message to a single recipient.
type Sender interface {
	Send(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender drops mail. Used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) Send(_ context.Context, _, _, _ string) error { return nil }

// NewSender builds the configured transport. Disabled email yields a
// NoopSender so callers never branch on configuration.
func NewSender(cfg *config.Config) (Sender, error) {
	if !cfg.EmailEnabled {
		return NoopSender{}, nil
	}

	switch cfg.EmailProvider {
	case "brevo":
		return NewBrevoSender(cfg.BrevoAPIKey, cfg.EmailFromAddress, cfg.EmailFromName), nil
	case "smtp":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFromAddress, cfg.EmailFromName), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}
