package handlers

import (
	"context"
	"time"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/database"
	"github.com/afikmenashe/alert-engine/internal/events"
	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/rules"
	"github.com/afikmenashe/alert-engine/internal/stats"
	pkgmetrics "github.com/afikmenashe/alert-engine/pkg/metrics"
)

// mockIngester implements Ingester for testing.
type mockIngester struct {
	IngestFn func(ctx context.Context, report events.Report, article events.Article) ([]string, error)
}

func (m *mockIngester) Ingest(ctx context.Context, report events.Report, article events.Article) ([]string, error) {
	if m.IngestFn != nil {
		return m.IngestFn(ctx, report, article)
	}
	return nil, nil
}

// mockRuleAdmin implements RuleAdmin over a plain registry.
type mockRuleAdmin struct {
	registry *rules.Registry
	SaveFn   func(rule rules.Rule) error
}

func newMockRuleAdmin(rs ...rules.Rule) *mockRuleAdmin {
	reg := rules.NewRegistry()
	reg.Load(rs)
	return &mockRuleAdmin{registry: reg}
}

func (m *mockRuleAdmin) Rules() []rules.Rule                { return m.registry.List() }
func (m *mockRuleAdmin) Rule(id string) (rules.Rule, error) { return m.registry.Get(id) }
func (m *mockRuleAdmin) ActiveRuleCount() int               { return m.registry.ActiveCount() }

func (m *mockRuleAdmin) UpsertRule(_ context.Context, rule rules.Rule) (rules.Rule, error) {
	stored, err := m.registry.Upsert(rule)
	if err != nil {
		return rules.Rule{}, err
	}
	if m.SaveFn != nil {
		return stored, m.SaveFn(stored)
	}
	return stored, nil
}

func (m *mockRuleAdmin) SetRuleActive(_ context.Context, id string, active bool) (rules.Rule, error) {
	return m.registry.SetActive(id, active)
}

func (m *mockRuleAdmin) DeleteRule(_ context.Context, id string) error {
	if !m.registry.Delete(id) {
		return alerterr.ErrRuleNotFound
	}
	return nil
}

// mockRepository implements Repository for testing.
type mockRepository struct {
	RecentFn          func(ctx context.Context, n int) ([]*notification.Notification, error)
	GetNotificationFn func(ctx context.Context, id string) (*notification.Notification, error)
	TotalFn           func(ctx context.Context, window time.Duration) (int64, error)
	BySeverityFn      func(ctx context.Context, window time.Duration) (database.Counts, error)
	ByRegionFn        func(ctx context.Context, window time.Duration) (database.Counts, error)
}

func (m *mockRepository) Recent(ctx context.Context, n int) ([]*notification.Notification, error) {
	if m.RecentFn != nil {
		return m.RecentFn(ctx, n)
	}
	return []*notification.Notification{}, nil
}

func (m *mockRepository) GetNotification(ctx context.Context, id string) (*notification.Notification, error) {
	if m.GetNotificationFn != nil {
		return m.GetNotificationFn(ctx, id)
	}
	return nil, alerterr.Persistence("get_notification", alerterr.ErrNotFound)
}

func (m *mockRepository) TotalNotifications(ctx context.Context, window time.Duration) (int64, error) {
	if m.TotalFn != nil {
		return m.TotalFn(ctx, window)
	}
	return 0, nil
}

func (m *mockRepository) CountsBySeverity(ctx context.Context, window time.Duration) (database.Counts, error) {
	if m.BySeverityFn != nil {
		return m.BySeverityFn(ctx, window)
	}
	return database.Counts{}, nil
}

func (m *mockRepository) CountsByRegion(ctx context.Context, window time.Duration) (database.Counts, error) {
	if m.ByRegionFn != nil {
		return m.ByRegionFn(ctx, window)
	}
	return database.Counts{}, nil
}

// mockStats implements StatsSource for testing.
type mockStats struct {
	snapshot stats.Snapshot
}

func (m *mockStats) Snapshot() stats.Snapshot { return m.snapshot }

// mockServiceMetrics implements ServiceMetricsReader for testing.
type mockServiceMetrics struct {
	docs map[string]*pkgmetrics.ServiceMetrics
}

func (m *mockServiceMetrics) Get(_ context.Context, name string) (*pkgmetrics.ServiceMetrics, error) {
	doc, ok := m.docs[name]
	if !ok {
		return nil, pkgmetrics.ErrNoMetrics
	}
	return doc, nil
}

func (m *mockServiceMetrics) All(context.Context) (map[string]*pkgmetrics.ServiceMetrics, error) {
	return m.docs, nil
}
