package rules

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
)

// Registry holds the configured rules. It is safe for concurrent use:
// evaluation takes read locks, administrative changes take the write lock.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[string]*Rule),
		now:   time.Now,
	}
}

// Load validates and installs rules. Malformed rules are rejected and
// logged; the registry keeps every valid one. The returned slice holds one
// *alerterr.ConfigurationError per rejected rule.
func (r *Registry) Load(rules []Rule) []error {
	var rejected []error
	for i := range rules {
		if _, err := r.Upsert(rules[i]); err != nil {
			slog.Warn("Rejected malformed rule",
				"rule_id", rules[i].ID,
				"error", err,
			)
			rejected = append(rejected, err)
		}
	}
	slog.Info("Loaded rules",
		"accepted", len(rules)-len(rejected),
		"rejected", len(rejected),
	)
	return rejected
}

// Upsert validates the rule and inserts or replaces it. It returns the
// stored copy.
func (r *Registry) Upsert(rule Rule) (Rule, error) {
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	if existing, ok := r.rules[rule.ID]; ok {
		rule.CreatedAt = existing.CreatedAt
	} else if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	if rule.UpdatedAt.IsZero() || rule.UpdatedAt.Before(rule.CreatedAt) {
		rule.UpdatedAt = now
	}

	stored := rule.clone()
	r.rules[rule.ID] = &stored
	return stored.clone(), nil
}

// Delete removes a rule. It reports whether the rule existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return false
	}
	delete(r.rules, id)
	return true
}

// SetActive toggles a rule's active flag and returns the updated copy.
func (r *Registry) SetActive(id string, active bool) (Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return Rule{}, alerterr.ErrRuleNotFound
	}
	rule.Active = active
	rule.UpdatedAt = r.now().UTC()
	return rule.clone(), nil
}

// Get returns a copy of the rule with the given id.
func (r *Registry) Get(id string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return Rule{}, alerterr.ErrRuleNotFound
	}
	return rule.clone(), nil
}

// List returns copies of all rules sorted by id.
func (r *Registry) List() []Rule {
	return r.collect(func(*Rule) bool { return true })
}

// Active returns copies of the active rules sorted by id.
func (r *Registry) Active() []Rule {
	return r.collect(func(rule *Rule) bool { return rule.Active })
}

// ActiveCount returns the number of active rules.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rule := range r.rules {
		if rule.Active {
			n++
		}
	}
	return n
}

func (r *Registry) collect(keep func(*Rule) bool) []Rule {
	r.mu.RLock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if keep(rule) {
			out = append(out, rule.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsConfigurationError reports whether err is a rule validation failure.
func IsConfigurationError(err error) bool {
	var cfgErr *alerterr.ConfigurationError
	return errors.As(err, &cfgErr)
}
