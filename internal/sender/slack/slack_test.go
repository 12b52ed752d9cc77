package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/sender/payload"
)

func TestMaskURL(t *testing.T) {
	long := "https://hooks.slack.com/services/T00000000/B00000000/XXXXXXXXXXXXXXXX"
	if got := maskURL(long); strings.Contains(got, "B00000000") {
		t.Errorf("maskURL() leaked path: %q", got)
	}
	if got := maskURL("http://x"); got != "http://x" {
		t.Errorf("maskURL(short) = %q", got)
	}
}

func TestNewSender_RejectsChannelName(t *testing.T) {
	if _, err := NewSender("#alerts"); err == nil {
		t.Error("NewSender(#alerts) expected error")
	}
}

func TestSender_Send(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"server error", http.StatusInternalServerError, true},
		{"forbidden", http.StatusForbidden, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload.WebhookPayload
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			s, err := NewSender(srv.URL)
			if err != nil {
				t.Fatalf("NewSender() error = %v", err)
			}
			n := &notification.Notification{ID: "n1", RuleName: "Ukraine strikes", Title: "t", Severity: "critical", Region: "ukraine"}
			err = s.Send(context.Background(), n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got.Attachments) != 1 || got.Attachments[0].Title != "Alert: Ukraine strikes" {
				t.Errorf("unexpected payload: %+v", got)
			}
		})
	}
}
