// Package email delivers notifications as plain text mail through the
// configured provider registry.
package email

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/sender/email/provider"
	"github.com/afikmenashe/alert-engine/internal/sender/payload"
	"github.com/afikmenashe/alert-engine/internal/sender/validation"
)

// Channel is the channel name this sender is registered under.
const Channel = "email"

// Mailer is implemented by provider.Registry.
type Mailer interface {
	Send(ctx context.Context, req *provider.EmailRequest) error
}

// Config holds the email channel settings.
type Config struct {
	From       string
	Recipients []string
	// RatePerSecond caps outgoing mail; zero disables the limit.
	RatePerSecond float64
	Burst         int
}

// Sender implements the email channel.
type Sender struct {
	mailer     Mailer
	from       string
	recipients []string
	limiter    *rate.Limiter
}

// NewSender creates an email sender.
func NewSender(mailer Mailer, cfg Config) (*Sender, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("email from address cannot be empty")
	}
	if len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("email recipients cannot be empty")
	}
	for _, r := range cfg.Recipients {
		if !validation.IsValidEmail(r) {
			return nil, fmt.Errorf("invalid email address format: %q", r)
		}
	}

	s := &Sender{
		mailer:     mailer,
		from:       cfg.From,
		recipients: append([]string(nil), cfg.Recipients...),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return s, nil
}

// Type returns the channel this sender handles.
func (s *Sender) Type() string {
	return Channel
}

// Send mails the notification to every configured recipient. When rate
// limited it waits for a token, bounded by ctx.
func (s *Sender) Send(ctx context.Context, n *notification.Notification) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("email rate limit: %w", err)
		}
	}

	p := payload.BuildEmailPayload(n)
	err := s.mailer.Send(ctx, &provider.EmailRequest{
		From:    s.from,
		To:      s.recipients,
		Subject: p.Subject,
		Body:    p.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", strings.Join(s.recipients, ", "), err)
	}
	return nil
}

// ParseRecipients parses a comma-separated list of email addresses.
func ParseRecipients(value string) []string {
	parts := strings.Split(value, ",")
	recipients := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return recipients
}
