// Package database provides the durable audit store for alert rules,
// notifications, and the alert log, backed by PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

// queryTimeout bounds dashboard read queries.
const queryTimeout = 2 * time.Second

// DB wraps a database connection and implements the audit store.
type DB struct {
	conn *sql.DB
	psql sq.StatementBuilderType
	now  func() time.Time
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return newDB(conn), nil
}

func newDB(conn *sql.DB) *DB {
	return &DB{
		conn: conn,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:  time.Now,
	}
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS alert_rules (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	conditions_json    JSONB NOT NULL DEFAULT '{}',
	severity_threshold TEXT NOT NULL,
	regions_json       JSONB NOT NULL DEFAULT '[]',
	keywords_json      JSONB NOT NULL DEFAULT '[]',
	channels_json      JSONB NOT NULL DEFAULT '[]',
	cooldown_minutes   INTEGER NOT NULL DEFAULT 0,
	active             BOOLEAN NOT NULL DEFAULT TRUE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS alert_notifications (
	id                   TEXT PRIMARY KEY,
	rule_id              TEXT NOT NULL,
	rule_name            TEXT NOT NULL DEFAULT '',
	title                TEXT NOT NULL,
	message              TEXT NOT NULL,
	severity             TEXT NOT NULL,
	region               TEXT NOT NULL,
	source_articles_json JSONB NOT NULL DEFAULT '[]',
	channels_json        JSONB NOT NULL DEFAULT '[]',
	metadata_json        JSONB,
	status               TEXT NOT NULL DEFAULT 'pending',
	created_at           TIMESTAMPTZ NOT NULL,
	sent_at              TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS alert_notifications_created_at_idx ON alert_notifications (created_at DESC);
CREATE INDEX IF NOT EXISTS alert_notifications_status_idx ON alert_notifications (status);

CREATE TABLE IF NOT EXISTS alert_logs (
	id        UUID PRIMARY KEY,
	alert_id  TEXT NOT NULL,
	action    TEXT NOT NULL,
	details   TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS alert_logs_alert_id_idx ON alert_logs (alert_id);
`

// EnsureSchema creates the audit tables when they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// marshalJSON serializes v as text for a JSONB column.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal json column: %w", err)
	}
	return string(data), nil
}

// marshalNullableJSON serializes a map to a sql.NullString for JSONB storage.
// Returns Valid=false for nil or empty maps (NULL in database).
func marshalNullableJSON(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalJSON decodes a JSONB column, logging and leaving dst untouched
// on malformed data.
func unmarshalJSON(data []byte, dst any, warnAttrs ...any) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("Failed to unmarshal json column", append([]any{"error", err}, warnAttrs...)...)
	}
}
