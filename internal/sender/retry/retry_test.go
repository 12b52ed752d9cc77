package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/afikmenashe/alert-engine/internal/notification"
)

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"timeout error", errors.New("connection timeout"), true},
		{"rate limit error", errors.New("rate limit exceeded"), true},
		{"webhook 503", errors.New("webhook returned status 503"), true},
		{"webhook 400", errors.New("webhook returned status 400"), false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"SES not verified (permanent)", errors.New("Email address is not verified"), false},
		{"invalid input", errors.New("invalid webhook URL"), false},
		{"deadline exceeded", fmt.Errorf("send: %w", context.DeadlineExceeded), false},
		{"canceled", context.Canceled, false},
		{"generic error", errors.New("some random error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		err       error
		retries   int
		wantErr   bool
		wantCalls int
	}{
		{"success first try", 0, nil, 3, false, 1},
		{"recovers after transient errors", 2, errors.New("connection timeout"), 2, false, 3},
		{"gives up after max retries", 5, errors.New("connection timeout"), 2, true, 3},
		{"permanent error fails fast", 5, errors.New("validation error"), 3, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), fastConfig(tt.retries), "test", func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("WithRetry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("WithRetry() called function %d times, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffFactor: 2}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- WithRetry(ctx, cfg, "test", func() error {
			calls++
			return errors.New("connection timeout")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("WithRetry() expected error after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("WithRetry() did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	cfg := Config{InitialBackoff: time.Second, MaxBackoff: 2 * time.Second, BackoffFactor: 10}
	got := calculateBackoff(cfg, 5)
	if got > 2500*time.Millisecond || got < 1500*time.Millisecond {
		t.Errorf("calculateBackoff() = %v, want within jitter of 2s", got)
	}
}

type flakySender struct {
	failures int
	calls    int
}

func (f *flakySender) Type() string { return "webhook" }
func (f *flakySender) Send(context.Context, *notification.Notification) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("webhook returned status 503")
	}
	return nil
}

func TestWrap(t *testing.T) {
	inner := &flakySender{failures: 1}
	s := Wrap(inner, fastConfig(2))

	if s.Type() != "webhook" {
		t.Errorf("Type() = %q, want webhook", s.Type())
	}
	if err := s.Send(context.Background(), &notification.Notification{ID: "n1"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner called %d times, want 2", inner.calls)
	}
}
