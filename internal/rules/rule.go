// Package rules holds alert rule definitions and the in-memory registry the
// evaluator reads from.
package rules

import (
	"errors"
	"strings"
	"time"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/events"
)

// Wildcard matches every region when present in Rule.Regions.
const Wildcard = "*"

// Conditions is the predicate part of a rule. An empty field is vacuously true.
type Conditions struct {
	ThreatLevels     []string `json:"threat_levels,omitempty" yaml:"threat_levels"`
	CredibilityMin   *float64 `json:"credibility_min,omitempty" yaml:"credibility_min"`
	CredibilityMax   *float64 `json:"credibility_max,omitempty" yaml:"credibility_max"`
	Topics           []string `json:"topics,omitempty" yaml:"topics"`
	Keywords         []string `json:"keywords,omitempty" yaml:"keywords"`
	KeywordsRequired int      `json:"keywords_required,omitempty" yaml:"keywords_required"`
}

// Rule is a configured alert rule.
type Rule struct {
	ID                string     `json:"id" yaml:"id"`
	Name              string     `json:"name" yaml:"name"`
	Conditions        Conditions `json:"conditions" yaml:"conditions"`
	SeverityThreshold string     `json:"severity_threshold" yaml:"severity_threshold"`
	Regions           []string   `json:"regions,omitempty" yaml:"regions"`
	Channels          []string   `json:"channels" yaml:"channels"`
	CooldownMinutes   int        `json:"cooldown_minutes" yaml:"cooldown_minutes"`
	Active            bool       `json:"active" yaml:"-"`
	CreatedAt         time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time  `json:"updated_at" yaml:"-"`
}

// Cooldown returns the rule's cooldown as a duration.
func (r *Rule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// Severity returns the parsed severity threshold. Validated rules always
// carry a known severity.
func (r *Rule) Severity() events.Severity {
	sev, _ := events.ParseSeverity(r.SeverityThreshold)
	return sev
}

// MatchesAnyRegion reports whether the rule carries the region wildcard.
func (r *Rule) MatchesAnyRegion() bool {
	for _, region := range r.Regions {
		if strings.TrimSpace(region) == Wildcard {
			return true
		}
	}
	return false
}

// RequiredKeywords returns the minimum distinct keyword count, applying the
// default of 1.
func (c *Conditions) RequiredKeywords() int {
	if c.KeywordsRequired <= 0 {
		return 1
	}
	return c.KeywordsRequired
}

// Normalize trims and lower-cases the matching fields in place so the
// evaluator can compare without re-normalizing per event.
func (r *Rule) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	if sev, ok := events.ParseSeverity(r.SeverityThreshold); ok {
		r.SeverityThreshold = string(sev)
	}
	r.Regions = normalizeList(r.Regions)
	r.Conditions.ThreatLevels = normalizeList(r.Conditions.ThreatLevels)
	r.Conditions.Topics = normalizeList(r.Conditions.Topics)
	r.Conditions.Keywords = normalizeList(r.Conditions.Keywords)
	channels := make([]string, 0, len(r.Channels))
	for _, ch := range r.Channels {
		channels = append(channels, strings.ToLower(strings.TrimSpace(ch)))
	}
	r.Channels = channels
}

// Validate checks the rule and returns a *alerterr.ConfigurationError for the
// first problem found.
func (r *Rule) Validate() error {
	invalid := func(field, msg string) error {
		return &alerterr.ConfigurationError{RuleID: r.ID, Field: field, Err: errors.New(msg)}
	}

	if r.ID == "" {
		return invalid("id", "id cannot be empty")
	}
	if r.Name == "" {
		return invalid("name", "name cannot be empty")
	}
	if _, ok := events.ParseSeverity(r.SeverityThreshold); !ok {
		return invalid("severity_threshold", "must be one of low, medium, high, critical")
	}
	if r.CooldownMinutes < 0 {
		return invalid("cooldown_minutes", "cannot be negative")
	}
	for _, level := range r.Conditions.ThreatLevels {
		if _, ok := events.ParseSeverity(level); !ok {
			return invalid("conditions.threat_levels", "unknown threat level "+level)
		}
	}
	c := r.Conditions
	if c.CredibilityMin != nil && c.CredibilityMax != nil && *c.CredibilityMin > *c.CredibilityMax {
		return invalid("conditions.credibility", "credibility_min cannot exceed credibility_max")
	}
	if c.KeywordsRequired < 0 {
		return invalid("conditions.keywords_required", "cannot be negative")
	}
	if len(c.Keywords) > 0 && c.RequiredKeywords() > len(c.Keywords) {
		return invalid("conditions.keywords_required", "cannot exceed the number of keywords")
	}
	if len(r.Channels) == 0 {
		return invalid("channels", "at least one channel is required")
	}
	for _, ch := range r.Channels {
		if ch == "" {
			return invalid("channels", "channel name cannot be empty")
		}
	}
	return nil
}

// clone returns a deep copy so registry readers never share slices with
// the registry.
func (r *Rule) clone() Rule {
	out := *r
	out.Regions = append([]string(nil), r.Regions...)
	out.Channels = append([]string(nil), r.Channels...)
	out.Conditions.ThreatLevels = append([]string(nil), r.Conditions.ThreatLevels...)
	out.Conditions.Topics = append([]string(nil), r.Conditions.Topics...)
	out.Conditions.Keywords = append([]string(nil), r.Conditions.Keywords...)
	if r.Conditions.CredibilityMin != nil {
		v := *r.Conditions.CredibilityMin
		out.Conditions.CredibilityMin = &v
	}
	if r.Conditions.CredibilityMax != nil {
		v := *r.Conditions.CredibilityMax
		out.Conditions.CredibilityMax = &v
	}
	return out
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
