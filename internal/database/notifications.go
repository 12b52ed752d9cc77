package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/notification"
)

var notificationColumns = []string{
	"id", "rule_id", "rule_name", "title", "message", "severity", "region",
	"source_articles_json", "channels_json", "metadata_json", "status", "created_at", "sent_at",
}

// Persist inserts a pending notification. Re-inserting an existing id is a
// no-op: inserted is false and err is nil.
func (db *DB) Persist(ctx context.Context, n *notification.Notification) (bool, error) {
	articles, err := marshalJSON(n.SourceArticles)
	if err != nil {
		return false, alerterr.Persistence("persist", err)
	}
	channels, err := marshalJSON(n.Channels)
	if err != nil {
		return false, alerterr.Persistence("persist", err)
	}
	metadata, err := marshalNullableJSON(n.Metadata)
	if err != nil {
		return false, alerterr.Persistence("persist", err)
	}

	query := `
		INSERT INTO alert_notifications (id, rule_id, rule_name, title, message, severity, region,
			source_articles_json, channels_json, metadata_json, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`

	var id string
	err = db.conn.QueryRowContext(ctx, query,
		n.ID,
		n.RuleID,
		n.RuleName,
		n.Title,
		n.Message,
		n.Severity,
		n.Region,
		articles,
		channels,
		metadata,
		notification.StatusPending.String(),
		n.CreatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No row was inserted (conflict occurred, row already exists)
			slog.Debug("Notification already exists, skipping",
				"notification_id", n.ID,
				"rule_id", n.RuleID,
			)
			return false, nil
		}
		return false, alerterr.Persistence("persist", fmt.Errorf("failed to insert notification: %w", err))
	}

	slog.Debug("Inserted new notification",
		"notification_id", id,
		"rule_id", n.RuleID,
	)
	return true, nil
}

// UpdateStatus moves a pending notification to a terminal status. Status
// only moves forward: updating a notification that already left pending
// returns alerterr.ErrStatusRegression.
func (db *DB) UpdateStatus(ctx context.Context, id string, status notification.Status, sentAt *time.Time) error {
	if !notification.StatusPending.CanTransition(status) {
		return alerterr.Persistence("update_status",
			fmt.Errorf("cannot set status %q: %w", status, alerterr.ErrStatusRegression))
	}

	query := `
		UPDATE alert_notifications
		SET status = $2, sent_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	result, err := db.conn.ExecContext(ctx, query, id, status.String(), sentAt)
	if err != nil {
		return alerterr.Persistence("update_status", fmt.Errorf("failed to update notification status: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return alerterr.Persistence("update_status", fmt.Errorf("failed to get rows affected: %w", err))
	}

	if rowsAffected == 0 {
		var current string
		err := db.conn.QueryRowContext(ctx, `SELECT status FROM alert_notifications WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return alerterr.Persistence("update_status", fmt.Errorf("%w: %s", alerterr.ErrNotFound, id))
		}
		if err != nil {
			return alerterr.Persistence("update_status", fmt.Errorf("failed to read notification status: %w", err))
		}
		return alerterr.Persistence("update_status",
			fmt.Errorf("notification %s is %s: %w", id, current, alerterr.ErrStatusRegression))
	}

	slog.Debug("Updated notification status",
		"notification_id", id,
		"status", status,
	)
	return nil
}

// GetNotification retrieves a notification by id.
func (db *DB) GetNotification(ctx context.Context, id string) (*notification.Notification, error) {
	query, args, err := db.psql.Select(notificationColumns...).
		From("alert_notifications").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	n, err := scanNotification(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", alerterr.ErrNotFound, id)
	}
	if err != nil {
		return nil, alerterr.Persistence("get_notification", err)
	}
	return n, nil
}

// Recent returns the n most recently created notifications, newest first.
func (db *DB) Recent(ctx context.Context, n int) ([]*notification.Notification, error) {
	if n <= 0 {
		return []*notification.Notification{}, nil
	}
	query, args, err := db.psql.Select(notificationColumns...).
		From("alert_notifications").
		OrderBy("created_at DESC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return db.queryNotifications(ctx, "recent", query, args...)
}

// Pending returns up to limit notifications still in pending status,
// oldest first, for the startup recovery pass.
func (db *DB) Pending(ctx context.Context, limit int) ([]*notification.Notification, error) {
	query, args, err := db.psql.Select(notificationColumns...).
		From("alert_notifications").
		Where("status = ?", notification.StatusPending.String()).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return db.queryNotifications(ctx, "pending", query, args...)
}

func (db *DB) queryNotifications(ctx context.Context, op, query string, args ...any) ([]*notification.Notification, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(queryCtx, query, args...)
	if err != nil {
		return nil, alerterr.Persistence(op, fmt.Errorf("failed to query notifications: %w", err))
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, alerterr.Persistence(op, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, alerterr.Persistence(op, fmt.Errorf("error iterating notifications: %w", err))
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*notification.Notification, error) {
	var (
		n                            notification.Notification
		articles, channels, metadata []byte
		status                       string
		sentAt                       sql.NullTime
	)
	err := row.Scan(
		&n.ID,
		&n.RuleID,
		&n.RuleName,
		&n.Title,
		&n.Message,
		&n.Severity,
		&n.Region,
		&articles,
		&channels,
		&metadata,
		&status,
		&n.CreatedAt,
		&sentAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	unmarshalJSON(articles, &n.SourceArticles, "notification_id", n.ID, "column", "source_articles_json")
	unmarshalJSON(channels, &n.Channels, "notification_id", n.ID, "column", "channels_json")
	unmarshalJSON(metadata, &n.Metadata, "notification_id", n.ID, "column", "metadata_json")
	if s, ok := notification.ParseStatus(status); ok {
		n.Status = s
	} else {
		slog.Warn("Unknown notification status in store", "notification_id", n.ID, "status", status)
		n.Status = notification.Status(status)
	}
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	return &n, nil
}
