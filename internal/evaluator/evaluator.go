// Package evaluator matches classified events against alert rules.
//
// Evaluation is a pure function of the event and a rule snapshot: it never
// touches cooldown state, the clock, or any store, so the predicate logic is
// testable on its own. Cooldown gating happens in a separate stage.
package evaluator

import (
	"fmt"
	"strings"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/events"
	"github.com/afikmenashe/alert-engine/internal/rules"
)

// Match is a rule whose conditions all held for an event.
type Match struct {
	Rule            rules.Rule
	Region          string
	MatchedKeywords []string
}

// Result holds the matches for one event plus the per-rule evaluation
// errors. A rule that errored is skipped; the others are still evaluated.
type Result struct {
	Matches []Match
	Errors  []error
}

// Evaluate checks every active rule against the event. Inactive rules are
// ignored.
func Evaluate(report events.Report, article events.Article, candidates []rules.Rule) Result {
	var res Result
	region := events.Region(report, article)
	text := strings.ToLower(article.Text())

	for i := range candidates {
		rule := &candidates[i]
		if !rule.Active {
			continue
		}
		keywords, ok, err := evaluateRule(rule, report, region, text)
		if err != nil {
			res.Errors = append(res.Errors, &alerterr.EvaluationError{RuleID: rule.ID, Err: err})
			continue
		}
		if ok {
			res.Matches = append(res.Matches, Match{
				Rule:            *rule,
				Region:          region,
				MatchedKeywords: keywords,
			})
		}
	}
	return res
}

// evaluateRule is the conjunction of all specified conditions. text must
// already be lower-cased.
func evaluateRule(rule *rules.Rule, report events.Report, region, text string) ([]string, bool, error) {
	c := &rule.Conditions

	if len(c.ThreatLevels) > 0 {
		if strings.TrimSpace(report.ThreatLevel) == "" {
			return nil, false, fmt.Errorf("threat_level: %w", alerterr.ErrMissingField)
		}
		if !matchThreatLevel(c.ThreatLevels, report.ThreatLevel) {
			return nil, false, nil
		}
	}

	if c.CredibilityMin != nil || c.CredibilityMax != nil {
		if report.CredibilityScore == nil {
			return nil, false, fmt.Errorf("credibility_score: %w", alerterr.ErrMissingField)
		}
		if !matchCredibility(c.CredibilityMin, c.CredibilityMax, *report.CredibilityScore) {
			return nil, false, nil
		}
	}

	if len(c.Topics) > 0 && !matchTopics(c.Topics, report.Topics) {
		return nil, false, nil
	}

	var matched []string
	if len(c.Keywords) > 0 {
		matched = MatchKeywords(c.Keywords, text)
		if len(matched) < c.RequiredKeywords() {
			return nil, false, nil
		}
	}

	if len(rule.Regions) > 0 && !rule.MatchesAnyRegion() {
		if region == "" {
			return nil, false, fmt.Errorf("region: %w", alerterr.ErrMissingField)
		}
		if !contains(rule.Regions, region) {
			return nil, false, nil
		}
	}

	return matched, true, nil
}

// MatchKeywords returns the distinct keywords that occur as case-insensitive
// substrings of text. text must already be lower-cased.
func MatchKeywords(keywords []string, text string) []string {
	seen := make(map[string]struct{}, len(keywords))
	var out []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		if strings.Contains(text, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func matchThreatLevel(levels []string, threatLevel string) bool {
	sev, ok := events.ParseSeverity(threatLevel)
	if !ok {
		return contains(levels, strings.ToLower(strings.TrimSpace(threatLevel)))
	}
	return contains(levels, string(sev))
}

func matchCredibility(lo, hi *float64, score float64) bool {
	if lo != nil && score < *lo {
		return false
	}
	if hi != nil && score > *hi {
		return false
	}
	return true
}

func matchTopics(want, have []string) bool {
	for _, topic := range have {
		if contains(want, strings.ToLower(strings.TrimSpace(topic))) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
