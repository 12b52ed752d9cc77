package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
)

// Alert log actions.
const (
	ActionCreated       = "created"
	ActionSuppressed    = "suppressed"
	ActionDispatched    = "dispatched"
	ActionChannelFailed = "channel_failed"
	ActionRecovered     = "recovered"
)

// AppendLog writes a free-form entry to the alert log.
func (db *DB) AppendLog(ctx context.Context, alertID, action, details string) error {
	query := `
		INSERT INTO alert_logs (id, alert_id, action, details, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.conn.ExecContext(ctx, query, uuid.NewString(), alertID, action, details, db.now().UTC())
	if err != nil {
		return alerterr.Persistence("append_log", fmt.Errorf("failed to append alert log: %w", err))
	}
	return nil
}
