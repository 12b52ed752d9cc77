// Package stats keeps rolling notification counters and a bounded list of
// recent notifications for the dashboard, reconciled against the audit
// store so they survive restarts.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/afikmenashe/alert-engine/internal/database"
	"github.com/afikmenashe/alert-engine/internal/notification"
)

// DefaultRecentCapacity is the size of the recent-notifications buffer.
const DefaultRecentCapacity = 50

// Store is the subset of the audit store the aggregator reconciles against.
type Store interface {
	TotalNotifications(ctx context.Context, window time.Duration) (int64, error)
	CountsBySeverity(ctx context.Context, window time.Duration) (database.Counts, error)
	CountsByRegion(ctx context.Context, window time.Duration) (database.Counts, error)
	Recent(ctx context.Context, n int) ([]*notification.Notification, error)
}

// Sink receives a copy of every reconciled snapshot.
type Sink interface {
	Write(ctx context.Context, s Snapshot) error
}

// Item is the dashboard summary of one notification.
type Item struct {
	ID        string              `json:"id"`
	RuleID    string              `json:"rule_id"`
	Title     string              `json:"title"`
	Severity  string              `json:"severity"`
	Region    string              `json:"region"`
	Status    notification.Status `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

// Snapshot is a point-in-time copy of the aggregates. Recent is ordered
// newest first.
type Snapshot struct {
	Total      int64            `json:"total"`
	BySeverity map[string]int64 `json:"by_severity"`
	ByRegion   map[string]int64 `json:"by_region"`
	Recent     []Item           `json:"recent"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Aggregator maintains in-memory counters. All methods are safe for
// concurrent use.
type Aggregator struct {
	store  Store
	window time.Duration
	sink   Sink
	now    func() time.Time

	mu         sync.RWMutex
	total      int64
	bySeverity map[string]int64
	byRegion   map[string]int64
	recent     *lru.Cache[string, Item]
	capacity   int
	updatedAt  time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSink mirrors every reconciled snapshot to s.
func WithSink(s Sink) Option {
	return func(a *Aggregator) { a.sink = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an aggregator. store may be nil, which disables
// reconciliation. window bounds the reconciled aggregates; a non-positive
// window reconciles over all history.
func New(store Store, capacity int, window time.Duration, opts ...Option) (*Aggregator, error) {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	recent, err := lru.New[string, Item](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create recent buffer: %w", err)
	}

	a := &Aggregator{
		store:      store,
		window:     window,
		now:        time.Now,
		bySeverity: make(map[string]int64),
		byRegion:   make(map[string]int64),
		recent:     recent,
		capacity:   capacity,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.updatedAt = a.now().UTC()
	return a, nil
}

// Record counts a dispatched notification and adds it to the recent buffer,
// evicting the oldest entry when full.
func (a *Aggregator) Record(n *notification.Notification) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.recent.Contains(n.ID) {
		a.total++
		a.bySeverity[n.Severity]++
		a.byRegion[n.Region]++
	}
	a.recent.Add(n.ID, itemFor(n))
	a.updatedAt = a.now().UTC()
}

// Snapshot returns a copy of the current aggregates.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	keys := a.recent.Keys() // oldest first
	recent := make([]Item, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if item, ok := a.recent.Peek(keys[i]); ok {
			recent = append(recent, item)
		}
	}

	return Snapshot{
		Total:      a.total,
		BySeverity: maps.Clone(a.bySeverity),
		ByRegion:   maps.Clone(a.byRegion),
		Recent:     recent,
		UpdatedAt:  a.updatedAt,
	}
}

// Reconcile replaces the counters and the recent buffer with aggregates
// read from the store. On error the in-memory state is left untouched.
func (a *Aggregator) Reconcile(ctx context.Context) error {
	if a.store == nil {
		return nil
	}

	total, err := a.store.TotalNotifications(ctx, a.window)
	if err != nil {
		return fmt.Errorf("failed to reconcile total: %w", err)
	}
	bySeverity, err := a.store.CountsBySeverity(ctx, a.window)
	if err != nil {
		return fmt.Errorf("failed to reconcile severity counts: %w", err)
	}
	byRegion, err := a.store.CountsByRegion(ctx, a.window)
	if err != nil {
		return fmt.Errorf("failed to reconcile region counts: %w", err)
	}
	recent, err := a.store.Recent(ctx, a.capacity)
	if err != nil {
		return fmt.Errorf("failed to reconcile recent notifications: %w", err)
	}

	a.mu.Lock()
	a.total = total
	a.bySeverity = map[string]int64(bySeverity)
	a.byRegion = map[string]int64(byRegion)
	a.recent.Purge()
	// Recent comes back newest first; insert oldest first so eviction order holds.
	for i := len(recent) - 1; i >= 0; i-- {
		a.recent.Add(recent[i].ID, itemFor(recent[i]))
	}
	a.updatedAt = a.now().UTC()
	a.mu.Unlock()

	if a.sink != nil {
		if err := a.sink.Write(ctx, a.Snapshot()); err != nil {
			slog.Warn("Failed to mirror stats snapshot", "error", err)
		}
	}
	return nil
}

// Run reconciles immediately and then every interval until ctx is done.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	if a.store == nil || interval <= 0 {
		return
	}
	if err := a.Reconcile(ctx); err != nil {
		slog.Warn("Stats reconciliation failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Reconcile(ctx); err != nil {
				slog.Warn("Stats reconciliation failed", "error", err)
			}
		}
	}
}

func itemFor(n *notification.Notification) Item {
	return Item{
		ID:        n.ID,
		RuleID:    n.RuleID,
		Title:     n.Title,
		Severity:  n.Severity,
		Region:    n.Region,
		Status:    n.Status,
		CreatedAt: n.CreatedAt,
	}
}
