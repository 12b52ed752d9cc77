// Package notification defines alert notifications and builds them from
// matched rules.
package notification

import (
	"time"
)

// Status is the delivery status of a notification.
type Status string

const (
	StatusPending       Status = "pending"
	StatusSent          Status = "sent"
	StatusPartiallySent Status = "partially-sent"
	StatusFailed        Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusPartiallySent || s == StatusFailed
}

// CanTransition reports whether a notification may move from s to next.
// Only pending notifications move, and only to a terminal status.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

// ParseStatus converts a stored status string to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusSent, StatusPartiallySent, StatusFailed:
		return Status(s), true
	default:
		return "", false
	}
}

// ArticleRef points at the article a notification was generated from.
type ArticleRef struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Notification is a concrete alert instance queued for delivery.
type Notification struct {
	ID             string            `json:"id"`
	RuleID         string            `json:"rule_id"`
	RuleName       string            `json:"rule_name"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	Severity       string            `json:"severity"`
	Region         string            `json:"region"`
	SourceArticles []ArticleRef      `json:"source_articles"`
	Channels       []string          `json:"channels"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Status         Status            `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
}

// URL returns the first source article URL, if any.
func (n *Notification) URL() string {
	if len(n.SourceArticles) == 0 {
		return ""
	}
	return n.SourceArticles[0].URL
}
