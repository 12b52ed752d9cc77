package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/database"
	"github.com/afikmenashe/alert-engine/internal/metrics"
	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/sender"
	"github.com/afikmenashe/alert-engine/internal/stats"
)

// Envelope types published to dashboard clients after each dispatch.
const (
	MessageTypeAlert = "alert"
	MessageTypeStats = "stats"
)

// DefaultStoreTimeout bounds the status and audit writes for one
// notification.
const DefaultStoreTimeout = 5 * time.Second

// Dispatcher delivers one notification to its channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *notification.Notification) sender.Result
}

// Store records delivery results.
type Store interface {
	UpdateStatus(ctx context.Context, id string, status notification.Status, sentAt *time.Time) error
	AppendLog(ctx context.Context, alertID, action, details string) error
}

// Stats receives every dispatched notification.
type Stats interface {
	Record(n *notification.Notification)
	Snapshot() stats.Snapshot
}

// Publisher pushes live updates to dashboard clients.
type Publisher interface {
	Publish(msgType string, data any) (int, error)
}

// Worker is the single consumer of a Queue. Notifications are dispatched
// and their status recorded strictly in enqueue order.
type Worker struct {
	queue      *Queue
	dispatcher Dispatcher
	store      Store
	stats      Stats
	publisher  Publisher
	metrics    metrics.Recorder
	now        func() time.Time
	storeTTL   time.Duration

	started   atomic.Bool
	done      chan struct{}
	abort     chan struct{}
	abortOnce sync.Once
}

// WorkerConfig wires a Worker. Store, Stats, Publisher and Metrics are optional.
type WorkerConfig struct {
	Queue      *Queue
	Dispatcher Dispatcher
	Store      Store
	Stats      Stats
	Publisher  Publisher
	Metrics    metrics.Recorder
	Now        func() time.Time
	// StoreTimeout defaults to DefaultStoreTimeout.
	StoreTimeout time.Duration
}

// NewWorker creates a worker.
func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		queue:      cfg.Queue,
		dispatcher: cfg.Dispatcher,
		store:      cfg.Store,
		stats:      cfg.Stats,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		now:        cfg.Now,
		storeTTL:   cfg.StoreTimeout,
		done:       make(chan struct{}),
		abort:      make(chan struct{}),
	}
	if w.metrics == nil {
		w.metrics = metrics.NewNoOp()
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.storeTTL <= 0 {
		w.storeTTL = DefaultStoreTimeout
	}
	return w
}

// Start launches the worker goroutine. It processes the queue until ctx is
// cancelled or the queue is closed and drained. A Drain issued after Start
// always waits for that goroutine. Calls after the first are ignored.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.abort:
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("Dispatch worker started", "queue_capacity", w.queue.Cap())
	for {
		if ctx.Err() != nil {
			slog.Info("Dispatch worker cancelled", "left_pending", w.queue.Len())
			return
		}
		select {
		case n := <-w.queue.items:
			w.process(ctx, n)
		case <-w.queue.done:
			w.drainRemaining(ctx)
			slog.Info("Dispatch worker stopped", "left_pending", w.queue.Len())
			return
		case <-ctx.Done():
			slog.Info("Dispatch worker cancelled", "left_pending", w.queue.Len())
			return
		}
	}
}

func (w *Worker) drainRemaining(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case n := <-w.queue.items:
			w.process(ctx, n)
		default:
			return
		}
	}
}

// Drain closes the queue and waits up to timeout for the worker to finish
// what is already queued. Notifications not dispatched by then, including
// one cut off mid-dispatch, stay pending in the store for the next startup.
func (w *Worker) Drain(timeout time.Duration) error {
	w.queue.Close()
	if !w.started.Load() {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
		return nil
	case <-timer.C:
		w.abortOnce.Do(func() { close(w.abort) })
		<-w.done
		return fmt.Errorf("drain timed out after %s with %d notifications left pending", timeout, w.queue.Len())
	}
}

// process dispatches one notification. Failures are logged and never stop
// the worker.
func (w *Worker) process(ctx context.Context, n *notification.Notification) {
	defer func() {
		if r := recover(); r != nil {
			w.metrics.RecordError()
			slog.Error("Recovered from panic while dispatching",
				"notification_id", n.ID,
				"panic", r,
			)
		}
	}()

	start := w.now()
	result := w.dispatcher.Dispatch(ctx, n)
	if ctx.Err() != nil {
		slog.Warn("Dispatch interrupted, leaving notification pending",
			"notification_id", n.ID,
		)
		return
	}

	sentAt := w.now().UTC()
	n.Status = result.Status
	n.SentAt = &sentAt
	w.metrics.RecordDispatched(result.Status.String(), sentAt.Sub(start))

	logAttrs := []any{
		"notification_id", n.ID,
		"rule_id", n.RuleID,
		"status", result.Status,
		"channels", len(result.Outcomes),
		"failed", len(result.Failed()),
	}
	if result.Status == notification.StatusSent {
		slog.Info("Notification dispatched", logAttrs...)
	} else {
		slog.Warn("Notification dispatched with failures", logAttrs...)
	}

	w.recordStatus(ctx, n, result, sentAt)

	if w.stats != nil {
		w.stats.Record(n)
	}
	w.publish(MessageTypeAlert, n)
	if w.stats != nil {
		w.publish(MessageTypeStats, w.stats.Snapshot())
	}
}

func (w *Worker) publish(msgType string, data any) {
	if w.publisher == nil {
		return
	}
	if _, err := w.publisher.Publish(msgType, data); err != nil {
		slog.Debug("Live publish skipped", "type", msgType, "error", err)
	}
}

func (w *Worker) recordStatus(ctx context.Context, n *notification.Notification, result sender.Result, sentAt time.Time) {
	if w.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, w.storeTTL)
	defer cancel()

	err := w.store.UpdateStatus(ctx, n.ID, result.Status, &sentAt)
	switch {
	case err == nil:
	case errors.Is(err, alerterr.ErrStatusRegression):
		slog.Warn("Notification already finalized, status unchanged", "notification_id", n.ID, "error", err)
	case errors.Is(err, alerterr.ErrNotFound):
		slog.Warn("Dispatched notification was never persisted", "notification_id", n.ID)
	default:
		w.metrics.RecordError()
		slog.Error("Failed to record notification status", "notification_id", n.ID, "error", err)
	}

	w.appendLog(ctx, n.ID, database.ActionDispatched, map[string]any{
		"status":   result.Status,
		"channels": n.Channels,
	})
	for _, o := range result.Failed() {
		w.appendLog(ctx, n.ID, database.ActionChannelFailed, map[string]any{
			"channel": o.Channel,
			"error":   o.Err.Error(),
		})
	}
}

func (w *Worker) appendLog(ctx context.Context, id, action string, details map[string]any) {
	data, err := json.Marshal(details)
	if err != nil {
		slog.Error("Failed to marshal log details", "notification_id", id, "error", err)
		return
	}
	if err := w.store.AppendLog(ctx, id, action, string(data)); err != nil {
		slog.Warn("Failed to append alert log", "notification_id", id, "action", action, "error", err)
	}
}
