package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/rules"
)

// LoadRules installs the rules held by the store. When the store has none
// and bootstrapPath is set, the YAML file seeds both the registry and the
// store. It returns the configuration errors of rejected rules.
func (e *Engine) LoadRules(ctx context.Context, bootstrapPath string) ([]error, error) {
	stored, err := e.store.LoadRules(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 || bootstrapPath == "" {
		return e.registry.Load(stored), nil
	}

	seed, err := rules.LoadFile(bootstrapPath)
	if err != nil {
		return nil, err
	}
	rejected := e.registry.Load(seed)
	for _, rule := range e.registry.List() {
		if err := e.store.SaveRule(ctx, rule); err != nil {
			slog.Warn("Failed to persist bootstrap rule", "rule_id", rule.ID, "error", err)
		}
	}
	slog.Info("Seeded rules from bootstrap file", "path", bootstrapPath, "count", e.registry.ActiveCount())
	return rejected, nil
}

// Rules returns every rule sorted by id.
func (e *Engine) Rules() []rules.Rule {
	return e.registry.List()
}

// Rule returns one rule.
func (e *Engine) Rule(id string) (rules.Rule, error) {
	return e.registry.Get(id)
}

// ActiveRuleCount returns the number of active rules.
func (e *Engine) ActiveRuleCount() int {
	return e.registry.ActiveCount()
}

// UpsertRule validates and applies a rule immediately, then persists it.
// A persistence failure is returned, but the rule stays live.
func (e *Engine) UpsertRule(ctx context.Context, rule rules.Rule) (rules.Rule, error) {
	stored, err := e.registry.Upsert(rule)
	if err != nil {
		return rules.Rule{}, err
	}
	if err := e.store.SaveRule(ctx, stored); err != nil {
		return stored, err
	}
	slog.Info("Rule saved", "rule_id", stored.ID, "active", stored.Active)
	return stored, nil
}

// SetRuleActive toggles a rule and persists the change.
func (e *Engine) SetRuleActive(ctx context.Context, id string, active bool) (rules.Rule, error) {
	stored, err := e.registry.SetActive(id, active)
	if err != nil {
		return rules.Rule{}, err
	}
	if err := e.store.SaveRule(ctx, stored); err != nil {
		return stored, err
	}
	slog.Info("Rule toggled", "rule_id", id, "active", active)
	return stored, nil
}

// DeleteRule removes a rule from the registry and the store.
func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	if !e.registry.Delete(id) {
		return alerterr.ErrRuleNotFound
	}
	if err := e.store.DeleteRule(ctx, id); err != nil && !errors.Is(err, alerterr.ErrRuleNotFound) {
		return err
	}
	slog.Info("Rule deleted", "rule_id", id)
	return nil
}
