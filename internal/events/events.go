// Package events defines the inbound event structures produced by the
// classification pipeline and consumed from the events.classified topic.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Report is the classification result for one article.
type Report struct {
	ThreatLevel        string   `json:"threat_level"`
	CredibilityScore   *float64 `json:"credibility_score,omitempty"`
	Topics             []string `json:"topics,omitempty"`
	GeographicEntities []string `json:"geographic_entities,omitempty"`
	ConflictIndicators []string `json:"conflict_indicators,omitempty"`
}

// Article is the source article a report was derived from.
type Article struct {
	Title              string `json:"title"`
	Description        string `json:"description"`
	URL                string `json:"url"`
	Source             string `json:"source"`
	Country            string `json:"country,omitempty"`
	ContentFingerprint string `json:"content_fingerprint,omitempty"`
}

// Classified is a (report, article) pair as it arrives on the wire.
type Classified struct {
	Report  Report  `json:"report"`
	Article Article `json:"article"`
}

// Region returns the region tag of the event: the first geographic entity,
// falling back to the article's country. Tags are lower-cased and trimmed.
// An empty string means the event carries no region.
func Region(report Report, article Article) string {
	if len(report.GeographicEntities) > 0 {
		if tag := normalizeTag(report.GeographicEntities[0]); tag != "" {
			return tag
		}
	}
	return normalizeTag(article.Country)
}

// Fingerprint returns the article's content fingerprint. Articles without
// one get a stable fingerprint derived from url and title.
func (a Article) Fingerprint() string {
	if a.ContentFingerprint != "" {
		return a.ContentFingerprint
	}
	sum := sha256.Sum256([]byte(a.URL + "\n" + a.Title))
	return hex.EncodeToString(sum[:16])
}

// Text returns the searchable text of the article.
func (a Article) Text() string {
	return a.Title + " " + a.Description
}

func normalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
