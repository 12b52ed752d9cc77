package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/afikmenashe/alert-engine/internal/notification"
)

type fakeFeed struct {
	err error
}

func (f *fakeFeed) Ready() error { return f.err }

func TestSender_Send(t *testing.T) {
	feed := &fakeFeed{}
	s := NewSender(feed)
	n := &notification.Notification{ID: "n1"}

	if s.Type() != Channel {
		t.Errorf("Type() = %q, want %q", s.Type(), Channel)
	}
	if err := s.Send(context.Background(), n); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	feed.err = errors.New("hub is closed")
	if err := s.Send(context.Background(), n); err == nil {
		t.Error("Send() expected error when hub is closed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, n); !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
}
