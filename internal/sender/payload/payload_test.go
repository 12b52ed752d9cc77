package payload

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/afikmenashe/alert-engine/internal/notification"
)

func testNotification() *notification.Notification {
	return &notification.Notification{
		ID:       "abc123",
		RuleID:   "r1",
		RuleName: "Ukraine strikes",
		Title:    "Missile attack reported",
		Message:  "Missile attack reported\nSource: Reuters",
		Severity: "critical",
		Region:   "ukraine",
		SourceArticles: []notification.ArticleRef{
			{Title: "Missile attack reported", URL: "https://news.test/a", Source: "Reuters"},
		},
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuildEmailPayload(t *testing.T) {
	p := BuildEmailPayload(testNotification())
	if p.Subject != "[CRITICAL] Missile attack reported" {
		t.Errorf("Subject = %q", p.Subject)
	}
	if p.Body != "Missile attack reported\nSource: Reuters" {
		t.Errorf("Body = %q", p.Body)
	}
}

func TestBuildWebhookPayload_CanonicalShape(t *testing.T) {
	data, err := json.Marshal(BuildWebhookPayload(testNotification()))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"text":"Missile attack reported","attachments":[{"color":"danger","fields":[{"title":"Severity","value":"CRITICAL"},{"title":"Region","value":"ukraine"}],"text":"Missile attack reported\nSource: Reuters","ts":1709294400}]}`
	if string(data) != want {
		t.Errorf("payload =\n%s\nwant\n%s", data, want)
	}
}

func TestBuildWebhookPayload_Colors(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{"critical", "danger"},
		{"high", "warning"},
		{"medium", "warning"},
		{"low", "good"},
		{"", "good"},
	}
	for _, tt := range tests {
		n := testNotification()
		n.Severity = tt.severity
		if got := BuildWebhookPayload(n).Attachments[0].Color; got != tt.want {
			t.Errorf("color(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func TestBuildSlackPayload(t *testing.T) {
	p := BuildSlackPayload(testNotification())
	att := p.Attachments[0]
	if att.Title != "Alert: Ukraine strikes" {
		t.Errorf("Title = %q", att.Title)
	}
	if len(att.Fields) != 3 || att.Fields[2].Value != "Reuters" {
		t.Errorf("Fields = %+v", att.Fields)
	}
	for _, f := range att.Fields {
		if !f.Short {
			t.Errorf("field %q should be short", f.Title)
		}
	}
}
