package notification

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/afikmenashe/alert-engine/internal/events"
	"github.com/afikmenashe/alert-engine/internal/rules"
)

const (
	// DefaultBucket is the idempotency window used when none is configured.
	DefaultBucket = 15 * time.Minute

	maxIndicators = 3
	unknownRegion = "unknown"
)

// Builder turns a matched rule and its event into a notification.
type Builder struct {
	bucket time.Duration
}

// NewBuilder creates a builder. A non-positive bucket falls back to
// DefaultBucket.
func NewBuilder(bucket time.Duration) *Builder {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	return &Builder{bucket: bucket}
}

// Bucket returns the idempotency window.
func (b *Builder) Bucket() time.Duration {
	return b.bucket
}

// ID returns the deterministic notification id for a rule, a content
// fingerprint, and the time bucket containing now. Identical inputs inside
// one bucket always produce the same id.
func (b *Builder) ID(ruleID, fingerprint string, now time.Time) string {
	bucket := now.UnixNano() / int64(b.bucket)
	h := sha256.New()
	h.Write([]byte(ruleID))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(bucket, 10)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Build creates a pending notification for rule matched by the event in
// region at now.
func (b *Builder) Build(rule rules.Rule, report events.Report, article events.Article, region string, now time.Time) *Notification {
	now = now.UTC()
	fingerprint := article.Fingerprint()
	if region == "" {
		region = unknownRegion
	}
	sev := rule.Severity()

	n := &Notification{
		ID:       b.ID(rule.ID, fingerprint, now),
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Title:    article.Title,
		Severity: string(sev),
		Region:   region,
		SourceArticles: []ArticleRef{{
			Title:  article.Title,
			URL:    article.URL,
			Source: article.Source,
		}},
		Channels:  append([]string(nil), rule.Channels...),
		Metadata:  buildMetadata(report, fingerprint),
		Status:    StatusPending,
		CreatedAt: now,
	}
	n.Message = buildMessage(article, sev, region, report.ConflictIndicators, now)
	return n
}

func buildMessage(article events.Article, sev events.Severity, region string, indicators []string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(article.Title)
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Source: %s\n", article.Source))
	sb.WriteString(fmt.Sprintf("Severity: %s\n", sev.Label()))
	sb.WriteString(fmt.Sprintf("Region: %s\n", region))
	if top := topIndicators(indicators); len(top) > 0 {
		sb.WriteString(fmt.Sprintf("Indicators: %s\n", strings.Join(top, ", ")))
	}
	sb.WriteString(fmt.Sprintf("URL: %s\n", article.URL))
	sb.WriteString(fmt.Sprintf("Generated: %s", now.Format(time.RFC3339)))
	return sb.String()
}

func topIndicators(indicators []string) []string {
	out := make([]string, 0, maxIndicators)
	for _, ind := range indicators {
		ind = strings.TrimSpace(ind)
		if ind == "" {
			continue
		}
		out = append(out, ind)
		if len(out) == maxIndicators {
			break
		}
	}
	return out
}

func buildMetadata(report events.Report, fingerprint string) map[string]string {
	md := map[string]string{
		"content_fingerprint": fingerprint,
	}
	if report.ThreatLevel != "" {
		md["threat_level"] = strings.ToLower(report.ThreatLevel)
	}
	if report.CredibilityScore != nil {
		md["credibility_score"] = strconv.FormatFloat(*report.CredibilityScore, 'f', 2, 64)
	}
	if len(report.Topics) > 0 {
		md["topics"] = strings.Join(report.Topics, ",")
	}
	return md
}
