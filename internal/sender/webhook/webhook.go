// Package webhook provides webhook notification sending via HTTP POST.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/sender/payload"
	"github.com/afikmenashe/alert-engine/internal/sender/validation"
)

// Channel is the channel name this sender is registered under.
const Channel = "webhook"

// Sender posts the canonical JSON payload to a configured URL.
type Sender struct {
	url        string
	httpClient *http.Client
}

// NewSender creates a webhook sender for url. The HTTP client timeout is a
// backstop; the dispatcher's per-send context is the real bound.
func NewSender(url string) (*Sender, error) {
	if !validation.IsValidURL(url) {
		return nil, fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", url)
	}
	return &Sender{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Type returns the channel this sender handles.
func (s *Sender) Type() string {
	return Channel
}

// Send posts the notification to the webhook. Any non-2xx response is an error.
func (s *Sender) Send(ctx context.Context, n *notification.Notification) error {
	jsonData, err := json.Marshal(payload.BuildWebhookPayload(n))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	slog.Debug("Webhook notification delivered",
		"notification_id", n.ID,
		"status_code", resp.StatusCode,
	)
	return nil
}
