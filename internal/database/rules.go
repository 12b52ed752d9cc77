package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/rules"
)

// SaveRule inserts or replaces a rule.
func (db *DB) SaveRule(ctx context.Context, rule rules.Rule) error {
	keywords, err := marshalJSON(rule.Conditions.Keywords)
	if err != nil {
		return alerterr.Persistence("save_rule", err)
	}
	cond := rule.Conditions
	cond.Keywords = nil
	conditions, err := marshalJSON(cond)
	if err != nil {
		return alerterr.Persistence("save_rule", err)
	}
	regions, err := marshalJSON(rule.Regions)
	if err != nil {
		return alerterr.Persistence("save_rule", err)
	}
	channels, err := marshalJSON(rule.Channels)
	if err != nil {
		return alerterr.Persistence("save_rule", err)
	}

	query := `
		INSERT INTO alert_rules (id, name, conditions_json, severity_threshold, regions_json,
			keywords_json, channels_json, cooldown_minutes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			conditions_json = EXCLUDED.conditions_json,
			severity_threshold = EXCLUDED.severity_threshold,
			regions_json = EXCLUDED.regions_json,
			keywords_json = EXCLUDED.keywords_json,
			channels_json = EXCLUDED.channels_json,
			cooldown_minutes = EXCLUDED.cooldown_minutes,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`
	_, err = db.conn.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		conditions,
		rule.SeverityThreshold,
		regions,
		keywords,
		channels,
		rule.CooldownMinutes,
		rule.Active,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return alerterr.Persistence("save_rule", fmt.Errorf("failed to save rule: %w", err))
	}

	slog.Debug("Saved rule", "rule_id", rule.ID, "active", rule.Active)
	return nil
}

// DeleteRule removes a rule. Deleting a missing rule returns
// alerterr.ErrRuleNotFound.
func (db *DB) DeleteRule(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return alerterr.Persistence("delete_rule", fmt.Errorf("failed to delete rule: %w", err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return alerterr.Persistence("delete_rule", fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", alerterr.ErrRuleNotFound, id)
	}
	return nil
}

// LoadRules returns every stored rule ordered by id. Rules are returned as
// stored; the registry validates them on load.
func (db *DB) LoadRules(ctx context.Context) ([]rules.Rule, error) {
	query := `
		SELECT id, name, conditions_json, severity_threshold, regions_json, keywords_json,
			channels_json, cooldown_minutes, active, created_at, updated_at
		FROM alert_rules
		ORDER BY id
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, alerterr.Persistence("load_rules", fmt.Errorf("failed to query rules: %w", err))
	}
	defer rows.Close()

	out := make([]rules.Rule, 0)
	for rows.Next() {
		var (
			r                                       rules.Rule
			conditions, regions, keywords, channels []byte
		)
		if err := rows.Scan(&r.ID, &r.Name, &conditions, &r.SeverityThreshold, &regions, &keywords,
			&channels, &r.CooldownMinutes, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, alerterr.Persistence("load_rules", fmt.Errorf("failed to scan rule: %w", err))
		}
		unmarshalJSON(conditions, &r.Conditions, "rule_id", r.ID, "column", "conditions_json")
		unmarshalJSON(keywords, &r.Conditions.Keywords, "rule_id", r.ID, "column", "keywords_json")
		unmarshalJSON(regions, &r.Regions, "rule_id", r.ID, "column", "regions_json")
		unmarshalJSON(channels, &r.Channels, "rule_id", r.ID, "column", "channels_json")
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, alerterr.Persistence("load_rules", fmt.Errorf("error iterating rules: %w", err))
	}
	return out, nil
}

// ActiveRuleCount returns the number of active rules in the store.
func (db *DB) ActiveRuleCount(ctx context.Context) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int64
	if err := db.conn.QueryRowContext(queryCtx, `SELECT COUNT(*) FROM alert_rules WHERE active = TRUE`).Scan(&count); err != nil {
		return 0, alerterr.Persistence("active_rule_count", fmt.Errorf("failed to count active rules: %w", err))
	}
	return count, nil
}
