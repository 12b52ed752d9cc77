// Package slack provides Slack notification sending via Incoming Webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/sender/payload"
	"github.com/afikmenashe/alert-engine/internal/sender/validation"
)

// Channel is the channel name this sender is registered under.
const Channel = "slack"

// maskURL masks the secret path of a webhook URL for logging.
func maskURL(url string) string {
	if len(url) > 50 {
		return url[:30] + "..." + url[len(url)-10:]
	}
	return url
}

// Sender implements Slack notification sending via an Incoming Webhook.
type Sender struct {
	webhookURL string
	httpClient *http.Client
}

// NewSender creates a Slack sender for an incoming webhook URL.
func NewSender(webhookURL string) (*Sender, error) {
	if !validation.IsValidURL(webhookURL) {
		return nil, fmt.Errorf("invalid Slack webhook URL: %q (must be a valid HTTP/HTTPS URL, not a channel name)", maskURL(webhookURL))
	}
	return &Sender{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Type returns the channel this sender handles.
func (s *Sender) Type() string {
	return Channel
}

// Send posts the Slack rendition of the notification.
func (s *Sender) Send(ctx context.Context, n *notification.Notification) error {
	jsonData, err := json.Marshal(payload.BuildSlackPayload(n))
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack notification to %s: %w", maskURL(s.webhookURL), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
