// Package engine wires evaluation, cooldown gating, notification building,
// persistence and queueing into the ingestion path, and owns rule
// administration, startup recovery and shutdown.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/cooldown"
	"github.com/afikmenashe/alert-engine/internal/database"
	"github.com/afikmenashe/alert-engine/internal/evaluator"
	"github.com/afikmenashe/alert-engine/internal/events"
	"github.com/afikmenashe/alert-engine/internal/metrics"
	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/rules"
)

// DefaultEnqueueTimeout bounds how long ingestion waits on a full queue.
const DefaultEnqueueTimeout = 5 * time.Second

// Store is the durable side of the engine.
type Store interface {
	Persist(ctx context.Context, n *notification.Notification) (bool, error)
	AppendLog(ctx context.Context, alertID, action, details string) error
	Pending(ctx context.Context, limit int) ([]*notification.Notification, error)
	LastFiredByRule(ctx context.Context, since time.Time) (map[string]time.Time, error)
	RuleStore
}

// RuleStore persists rule definitions for restart recovery.
type RuleStore interface {
	SaveRule(ctx context.Context, rule rules.Rule) error
	DeleteRule(ctx context.Context, id string) error
	LoadRules(ctx context.Context) ([]rules.Rule, error)
}

// Queue accepts notifications for dispatch.
type Queue interface {
	Enqueue(ctx context.Context, n *notification.Notification) error
}

// Drainer finishes queued work on shutdown.
type Drainer interface {
	Drain(timeout time.Duration) error
}

// Config wires an Engine. Registry, Tracker, Builder, Store and Queue are
// required.
type Config struct {
	Registry       *rules.Registry
	Tracker        *cooldown.Tracker
	Builder        *notification.Builder
	Store          Store
	Queue          Queue
	Worker         Drainer
	Metrics        metrics.Recorder
	EnqueueTimeout time.Duration
	Now            func() time.Time
	// OnShutdown runs after the queue is drained, in order.
	OnShutdown []func()
}

// Engine is the ingestion entry point.
type Engine struct {
	registry       *rules.Registry
	tracker        *cooldown.Tracker
	builder        *notification.Builder
	store          Store
	queue          Queue
	worker         Drainer
	metrics        metrics.Recorder
	enqueueTimeout time.Duration
	now            func() time.Time
	onShutdown     []func()

	closed atomic.Bool
}

// New creates an engine.
func New(cfg Config) *Engine {
	e := &Engine{
		registry:       cfg.Registry,
		tracker:        cfg.Tracker,
		builder:        cfg.Builder,
		store:          cfg.Store,
		queue:          cfg.Queue,
		worker:         cfg.Worker,
		metrics:        cfg.Metrics,
		enqueueTimeout: cfg.EnqueueTimeout,
		now:            cfg.Now,
		onShutdown:     cfg.OnShutdown,
	}
	if e.metrics == nil {
		e.metrics = metrics.NewNoOp()
	}
	if e.enqueueTimeout <= 0 {
		e.enqueueTimeout = DefaultEnqueueTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Ingest evaluates one classified event and queues a notification for every
// matched rule that is not cooling down. It returns the ids of the queued
// notifications. Delivery outcomes are never reported to the caller.
func (e *Engine) Ingest(ctx context.Context, report events.Report, article events.Article) ([]string, error) {
	if e.closed.Load() {
		return nil, alerterr.ErrQueueClosed
	}
	e.metrics.RecordReceived()

	result := evaluator.Evaluate(report, article, e.registry.Active())
	for _, err := range result.Errors {
		slog.Warn("Rule skipped for event", "url", article.URL, "error", err)
	}

	now := e.now()
	ids := make([]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		e.metrics.RecordMatched()
		if !e.tracker.TryFire(m.Rule.ID, m.Rule.Cooldown(), now) {
			e.suppressed(ctx, m, article, now)
			continue
		}

		n := e.builder.Build(m.Rule, report, article, m.Region, now)
		if !e.persist(ctx, n, m) {
			continue
		}
		if err := e.enqueue(ctx, n); err != nil {
			e.metrics.RecordError()
			slog.Error("Failed to queue notification, leaving it pending",
				"notification_id", n.ID,
				"rule_id", n.RuleID,
				"error", err,
			)
			if errors.Is(err, alerterr.ErrQueueClosed) {
				return ids, err
			}
			continue
		}
		e.metrics.RecordEnqueued()
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// persist stores n as pending. It reports whether n should be dispatched:
// a duplicate inside the same time bucket is not, while a store failure
// still is, without a durability guarantee.
func (e *Engine) persist(ctx context.Context, n *notification.Notification, m evaluator.Match) bool {
	inserted, err := e.store.Persist(ctx, n)
	if err != nil {
		e.metrics.RecordError()
		slog.Error("Failed to persist notification, dispatching anyway",
			"notification_id", n.ID,
			"rule_id", n.RuleID,
			"error", err,
		)
		return true
	}
	if !inserted {
		e.metrics.RecordDuplicate()
		slog.Debug("Notification already exists, skipping", "notification_id", n.ID, "rule_id", n.RuleID)
		return false
	}

	slog.Info("Notification created",
		"notification_id", n.ID,
		"rule_id", n.RuleID,
		"severity", n.Severity,
		"region", n.Region,
	)
	e.appendLog(ctx, n.ID, database.ActionCreated, map[string]any{
		"rule_id":          n.RuleID,
		"matched_keywords": m.MatchedKeywords,
	})
	return true
}

func (e *Engine) enqueue(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, e.enqueueTimeout)
	defer cancel()
	return e.queue.Enqueue(ctx, n)
}

func (e *Engine) suppressed(ctx context.Context, m evaluator.Match, article events.Article, now time.Time) {
	e.metrics.RecordSuppressed()
	expiry, _ := e.tracker.Expiry(m.Rule.ID)
	slog.Debug("Rule match suppressed by cooldown",
		"rule_id", m.Rule.ID,
		"cooldown_until", expiry,
	)
	e.appendLog(ctx, e.builder.ID(m.Rule.ID, article.Fingerprint(), now), database.ActionSuppressed, map[string]any{
		"rule_id":        m.Rule.ID,
		"cooldown_until": expiry.UTC().Format(time.RFC3339),
	})
}

func (e *Engine) appendLog(ctx context.Context, id, action string, details map[string]any) {
	data, err := json.Marshal(details)
	if err != nil {
		slog.Error("Failed to marshal log details", "alert_id", id, "error", err)
		return
	}
	if err := e.store.AppendLog(ctx, id, action, string(data)); err != nil {
		slog.Warn("Failed to append alert log", "alert_id", id, "action", action, "error", err)
	}
}

// Recover re-queues up to limit notifications left pending by a previous
// run, oldest first. It returns how many were queued.
func (e *Engine) Recover(ctx context.Context, limit int) (int, error) {
	pending, err := e.store.Pending(ctx, limit)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, n := range pending {
		if err := e.enqueue(ctx, n); err != nil {
			return queued, err
		}
		e.appendLog(ctx, n.ID, database.ActionRecovered, map[string]any{"rule_id": n.RuleID})
		queued++
	}
	if queued > 0 {
		slog.Info("Recovered pending notifications", "count", queued)
	}
	return queued, nil
}

// RestoreCooldowns re-arms cooldown windows from the newest persisted
// notification of every rule, so a restart does not reopen them.
func (e *Engine) RestoreCooldowns(ctx context.Context) error {
	var longest time.Duration
	active := e.registry.List()
	for i := range active {
		if cd := active[i].Cooldown(); cd > longest {
			longest = cd
		}
	}
	if longest == 0 {
		return nil
	}

	now := e.now()
	last, err := e.store.LastFiredByRule(ctx, now.Add(-longest))
	if err != nil {
		return err
	}
	restored := 0
	for i := range active {
		fired, ok := last[active[i].ID]
		if !ok {
			continue
		}
		expiry := fired.Add(active[i].Cooldown())
		if expiry.After(now) {
			e.tracker.Restore(active[i].ID, expiry)
			restored++
		}
	}
	slog.Info("Restored cooldown windows", "rules", restored)
	return nil
}

// Shutdown stops ingestion, drains the dispatch queue for up to
// drainTimeout, then runs the shutdown hooks.
func (e *Engine) Shutdown(drainTimeout time.Duration) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	slog.Info("Engine shutting down", "drain_timeout", drainTimeout)

	var err error
	if e.worker != nil {
		err = e.worker.Drain(drainTimeout)
		if err != nil {
			slog.Warn("Dispatch queue not fully drained", "error", err)
		}
	}
	for _, fn := range e.onShutdown {
		fn()
	}
	return err
}
