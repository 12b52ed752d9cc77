// Package cooldown gates how often a rule may fire.
package cooldown

import (
	"sync"
	"time"
)

// State is the per-rule cooldown state.
type State int

const (
	Idle State = iota
	Cooling
)

func (s State) String() string {
	if s == Cooling {
		return "cooldown"
	}
	return "idle"
}

// Tracker holds the expiry of each rule's current cooldown window. Check and
// update happen under one lock, so two concurrent events for the same rule
// can never both observe Idle.
type Tracker struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

// NewTracker creates an empty tracker. Every rule starts Idle.
func NewTracker() *Tracker {
	return &Tracker{expiry: make(map[string]time.Time)}
}

// TryFire reports whether ruleID may fire at now. When it may, the rule
// enters cooldown until now+cooldown. A rule whose window has passed is
// treated as Idle. A zero cooldown always allows.
func (t *Tracker) TryFire(ruleID string, cooldown time.Duration, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if exp, ok := t.expiry[ruleID]; ok && now.Before(exp) {
		return false
	}
	t.expiry[ruleID] = now.Add(cooldown)
	return true
}

// State returns the rule's state at now.
func (t *Tracker) State(ruleID string, now time.Time) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if exp, ok := t.expiry[ruleID]; ok && now.Before(exp) {
		return Cooling
	}
	return Idle
}

// Expiry returns the end of the rule's most recent cooldown window.
func (t *Tracker) Expiry(ruleID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	exp, ok := t.expiry[ruleID]
	return exp, ok
}

// Restore seeds a rule's cooldown expiry, e.g. from the last persisted
// notification after a restart. An earlier expiry never replaces a later one.
func (t *Tracker) Restore(ruleID string, expiry time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.expiry[ruleID]; ok && cur.After(expiry) {
		return
	}
	t.expiry[ruleID] = expiry
}
