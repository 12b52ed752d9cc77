package email

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/sender/email/provider"
)

type fakeMailer struct {
	reqs []*provider.EmailRequest
	err  error
}

func (f *fakeMailer) Send(_ context.Context, req *provider.EmailRequest) error {
	f.reqs = append(f.reqs, req)
	return f.err
}

func TestNewSender_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{From: "alerts@engine.local", Recipients: []string{"ops@example.com"}}, false},
		{"missing from", Config{Recipients: []string{"ops@example.com"}}, true},
		{"no recipients", Config{From: "alerts@engine.local"}, true},
		{"bad recipient", Config{From: "alerts@engine.local", Recipients: []string{"ops"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSender(&fakeMailer{}, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSender() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSender_Send(t *testing.T) {
	mailer := &fakeMailer{}
	s, err := NewSender(mailer, Config{From: "alerts@engine.local", Recipients: []string{"ops@example.com"}})
	if err != nil {
		t.Fatal(err)
	}

	n := &notification.Notification{ID: "n1", Title: "Missile attack", Message: "details", Severity: "critical"}
	if err := s.Send(context.Background(), n); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(mailer.reqs) != 1 {
		t.Fatalf("mailer called %d times, want 1", len(mailer.reqs))
	}
	req := mailer.reqs[0]
	if req.Subject != "[CRITICAL] Missile attack" || req.Body != "details" {
		t.Errorf("unexpected request: %+v", req)
	}

	mailer.err = errors.New("smtp down")
	if err := s.Send(context.Background(), n); err == nil {
		t.Error("Send() expected error from mailer")
	}
}

func TestSender_RateLimitHonorsContext(t *testing.T) {
	mailer := &fakeMailer{}
	s, _ := NewSender(mailer, Config{
		From:          "alerts@engine.local",
		Recipients:    []string{"ops@example.com"},
		RatePerSecond: 0.001,
		Burst:         1,
	})
	n := &notification.Notification{ID: "n1", Severity: "low"}

	if err := s.Send(context.Background(), n); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Send(ctx, n); err == nil {
		t.Error("second Send() should fail waiting for a token")
	}
	if len(mailer.reqs) != 1 {
		t.Errorf("mailer called %d times, want 1", len(mailer.reqs))
	}
}

func TestParseRecipients(t *testing.T) {
	got := ParseRecipients(" a@x.io, ,b@x.io ")
	if want := []string{"a@x.io", "b@x.io"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ParseRecipients() = %v, want %v", got, want)
	}
}
