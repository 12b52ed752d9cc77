// Package payload provides payload builders for different notification channels.
package payload

import (
	"fmt"

	"github.com/afikmenashe/alert-engine/internal/events"
	"github.com/afikmenashe/alert-engine/internal/notification"
)

// EmailPayload represents email message content.
type EmailPayload struct {
	Subject string
	Body    string
}

// BuildEmailPayload builds the email subject "[SEVERITY] title" and uses the
// notification message as the body.
func BuildEmailPayload(n *notification.Notification) EmailPayload {
	return EmailPayload{
		Subject: fmt.Sprintf("[%s] %s", severity(n).Label(), n.Title),
		Body:    n.Message,
	}
}

// WebhookPayload is the channel-agnostic JSON document posted to webhooks.
// Chat adapters translate it into their own formats.
type WebhookPayload struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is a single colored block of the payload.
type Attachment struct {
	Color     string  `json:"color"`
	Title     string  `json:"title,omitempty"`
	Fields    []Field `json:"fields"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"ts"`
}

// Field represents a titled value inside an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}

// BuildWebhookPayload builds the canonical webhook payload.
func BuildWebhookPayload(n *notification.Notification) WebhookPayload {
	sev := severity(n)
	return WebhookPayload{
		Text: n.Title,
		Attachments: []Attachment{{
			Color: sev.Color(),
			Fields: []Field{
				{Title: "Severity", Value: sev.Label()},
				{Title: "Region", Value: n.Region},
			},
			Text:      n.Message,
			Timestamp: n.CreatedAt.Unix(),
		}},
	}
}

// BuildSlackPayload translates the canonical payload for a Slack incoming
// webhook: the attachment gets a title naming the rule, and fields render
// side by side.
func BuildSlackPayload(n *notification.Notification) WebhookPayload {
	p := BuildWebhookPayload(n)
	att := &p.Attachments[0]
	att.Title = fmt.Sprintf("Alert: %s", n.RuleName)
	for i := range att.Fields {
		att.Fields[i].Short = true
	}
	if ref := firstSource(n); ref != "" {
		att.Fields = append(att.Fields, Field{Title: "Source", Value: ref, Short: true})
	}
	return p
}

func severity(n *notification.Notification) events.Severity {
	sev, _ := events.ParseSeverity(n.Severity)
	return sev
}

func firstSource(n *notification.Notification) string {
	if len(n.SourceArticles) == 0 {
		return ""
	}
	return n.SourceArticles[0].Source
}
