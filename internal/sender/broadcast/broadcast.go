// Package broadcast is the dashboard channel. The alert envelope itself is
// published by the dispatch worker once the final status is known; this
// sender only reports whether the live feed can take it.
package broadcast

import (
	"context"
	"fmt"

	"github.com/afikmenashe/alert-engine/internal/notification"
)

// Channel is the channel name this sender is registered under.
const Channel = "broadcast"

// Feed is implemented by hub.Hub.
type Feed interface {
	Ready() error
}

// Sender reports broadcast delivery for rules that list the channel.
type Sender struct {
	feed Feed
}

// NewSender creates a broadcast sender.
func NewSender(feed Feed) *Sender {
	return &Sender{feed: feed}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() string {
	return Channel
}

// Send succeeds while the hub is accepting messages, regardless of how many
// clients are connected. Per-client failures never surface here.
func (s *Sender) Send(ctx context.Context, _ *notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.feed.Ready(); err != nil {
		return fmt.Errorf("hub rejected broadcast: %w", err)
	}
	return nil
}
