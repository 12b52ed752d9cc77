package handlers

import (
	"context"
	"time"

	"github.com/afikmenashe/alert-engine/internal/database"
	"github.com/afikmenashe/alert-engine/internal/events"
	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/rules"
	"github.com/afikmenashe/alert-engine/internal/stats"
	pkgmetrics "github.com/afikmenashe/alert-engine/pkg/metrics"
)

// Ingester accepts classified events.
type Ingester interface {
	Ingest(ctx context.Context, report events.Report, article events.Article) ([]string, error)
}

// RuleAdmin manages the live rule set.
type RuleAdmin interface {
	Rules() []rules.Rule
	Rule(id string) (rules.Rule, error)
	ActiveRuleCount() int
	UpsertRule(ctx context.Context, rule rules.Rule) (rules.Rule, error)
	SetRuleActive(ctx context.Context, id string, active bool) (rules.Rule, error)
	DeleteRule(ctx context.Context, id string) error
}

// Repository serves the dashboard read queries.
type Repository interface {
	Recent(ctx context.Context, n int) ([]*notification.Notification, error)
	GetNotification(ctx context.Context, id string) (*notification.Notification, error)
	TotalNotifications(ctx context.Context, window time.Duration) (int64, error)
	CountsBySeverity(ctx context.Context, window time.Duration) (database.Counts, error)
	CountsByRegion(ctx context.Context, window time.Duration) (database.Counts, error)
}

// StatsSource provides the in-memory dashboard snapshot.
type StatsSource interface {
	Snapshot() stats.Snapshot
}

// ServiceMetricsReader reads collector documents published to Redis.
type ServiceMetricsReader interface {
	Get(ctx context.Context, name string) (*pkgmetrics.ServiceMetrics, error)
	All(ctx context.Context) (map[string]*pkgmetrics.ServiceMetrics, error)
}
