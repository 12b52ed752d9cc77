package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
)

// Counts maps a dimension value (severity or region) to a notification count.
type Counts map[string]int64

// CountsBySeverity counts notifications created within window, grouped by
// severity. A non-positive window counts every notification.
func (db *DB) CountsBySeverity(ctx context.Context, window time.Duration) (Counts, error) {
	return db.countBy(ctx, "severity", window)
}

// CountsByRegion counts notifications created within window, grouped by
// region. A non-positive window counts every notification.
func (db *DB) CountsByRegion(ctx context.Context, window time.Duration) (Counts, error) {
	return db.countBy(ctx, "region", window)
}

// TotalNotifications counts notifications created within window.
func (db *DB) TotalNotifications(ctx context.Context, window time.Duration) (int64, error) {
	builder := db.psql.Select("COUNT(*)").From("alert_notifications")
	if window > 0 {
		builder = builder.Where(sq.GtOrEq{"created_at": db.now().Add(-window).UTC()})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int64
	if err := db.conn.QueryRowContext(queryCtx, query, args...).Scan(&total); err != nil {
		return 0, alerterr.Persistence("total_notifications", fmt.Errorf("failed to count notifications: %w", err))
	}
	return total, nil
}

// LastFiredByRule returns the newest notification creation time per rule.
// It is used to restore cooldown windows after a restart.
func (db *DB) LastFiredByRule(ctx context.Context, since time.Time) (map[string]time.Time, error) {
	query, args, err := db.psql.Select("rule_id", "MAX(created_at)").
		From("alert_notifications").
		Where(sq.GtOrEq{"created_at": since.UTC()}).
		GroupBy("rule_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(queryCtx, query, args...)
	if err != nil {
		return nil, alerterr.Persistence("last_fired", fmt.Errorf("failed to query last fired: %w", err))
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var ruleID string
		var at time.Time
		if err := rows.Scan(&ruleID, &at); err != nil {
			return nil, alerterr.Persistence("last_fired", fmt.Errorf("failed to scan last fired: %w", err))
		}
		out[ruleID] = at
	}
	if err := rows.Err(); err != nil {
		return nil, alerterr.Persistence("last_fired", fmt.Errorf("error iterating last fired: %w", err))
	}
	return out, nil
}

func (db *DB) countBy(ctx context.Context, column string, window time.Duration) (Counts, error) {
	builder := db.psql.Select(column, "COUNT(*)").From("alert_notifications")
	if window > 0 {
		builder = builder.Where(sq.GtOrEq{"created_at": db.now().Add(-window).UTC()})
	}
	query, args, err := builder.GroupBy(column).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(queryCtx, query, args...)
	if err != nil {
		return nil, alerterr.Persistence("counts_by_"+column, fmt.Errorf("failed to count by %s: %w", column, err))
	}
	defer rows.Close()

	counts := make(Counts)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, alerterr.Persistence("counts_by_"+column, fmt.Errorf("failed to scan count: %w", err))
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, alerterr.Persistence("counts_by_"+column, fmt.Errorf("error iterating counts: %w", err))
	}
	return counts, nil
}
