package events

import "strings"

// Severity is an ordered alert severity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity converts a severity string (any case) to a Severity.
// The second return value is false for unknown values.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	default:
		return "", false
	}
}

// Rank orders severities from 1 (low) to 4 (critical). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Label returns the upper-case display form, e.g. "CRITICAL".
func (s Severity) Label() string {
	if s == "" {
		return "UNSPECIFIED"
	}
	return strings.ToUpper(string(s))
}

// Color returns the attachment color used by chat-style channels.
func (s Severity) Color() string {
	switch s {
	case SeverityCritical:
		return "danger" // red
	case SeverityHigh, SeverityMedium:
		return "warning" // yellow
	default:
		return "good" // green
	}
}
