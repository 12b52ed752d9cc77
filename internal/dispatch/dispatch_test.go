package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/database"
	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/sender"
	"github.com/afikmenashe/alert-engine/internal/stats"
)

type FakeDispatcher struct {
	DispatchFn func(ctx context.Context, n *notification.Notification) sender.Result
}

func (f *FakeDispatcher) Dispatch(ctx context.Context, n *notification.Notification) sender.Result {
	return f.DispatchFn(ctx, n)
}

func statusDispatcher(status notification.Status) *FakeDispatcher {
	return &FakeDispatcher{DispatchFn: func(context.Context, *notification.Notification) sender.Result {
		return sender.Result{Status: status}
	}}
}

type FakeStore struct {
	mu       sync.Mutex
	updates  []string
	statuses map[string]notification.Status
	logs     []string
	UpdateFn func(ctx context.Context, id string) error
}

func (f *FakeStore) UpdateStatus(ctx context.Context, id string, status notification.Status, _ *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateFn != nil {
		if err := f.UpdateFn(ctx, id); err != nil {
			return err
		}
	}
	if f.statuses == nil {
		f.statuses = make(map[string]notification.Status)
	}
	f.updates = append(f.updates, id)
	f.statuses[id] = status
	return nil
}

func (f *FakeStore) AppendLog(_ context.Context, alertID, action, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, alertID+":"+action)
	return nil
}

func (f *FakeStore) snapshot() ([]string, map[string]notification.Status, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	statuses := make(map[string]notification.Status, len(f.statuses))
	for k, v := range f.statuses {
		statuses[k] = v
	}
	return append([]string(nil), f.updates...), statuses, append([]string(nil), f.logs...)
}

type fakePublisher struct {
	mu       sync.Mutex
	types    []string
	statuses []notification.Status
}

func (f *fakePublisher) Publish(msgType string, data any) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, msgType)
	if n, ok := data.(*notification.Notification); ok {
		f.statuses = append(f.statuses, n.Status)
	}
	return 1, nil
}

func pending(id string) *notification.Notification {
	return &notification.Notification{ID: id, RuleID: "r1", Severity: "high", Region: "asia", Status: notification.StatusPending}
}

func TestQueue_EnqueueTimeout(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), pending("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, pending("b"))

	var ee *alerterr.EvaluationError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, alerterr.ErrQueueTimeout)
	assert.Equal(t, "r1", ee.RuleID)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(2)
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.ErrorIs(t, q.Enqueue(context.Background(), pending("a")), alerterr.ErrQueueClosed)
}

func TestQueue_CloseUnblocksEnqueue(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), pending("a")))

	errc := make(chan error, 1)
	go func() { errc <- q.Enqueue(context.Background(), pending("c")) }()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, alerterr.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Enqueue did not return after Close")
	}
}

func TestWorker_PreservesEnqueueOrder(t *testing.T) {
	q := NewQueue(100)
	store := &FakeStore{}
	statuses := []notification.Status{notification.StatusSent, notification.StatusPartiallySent, notification.StatusFailed}
	d := &FakeDispatcher{DispatchFn: func(_ context.Context, n *notification.Notification) sender.Result {
		var i int
		fmt.Sscanf(n.ID, "n%d", &i)
		return sender.Result{Status: statuses[i%len(statuses)]}
	}}

	var want []string
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("n%d", i)
		want = append(want, id)
		require.NoError(t, q.Enqueue(context.Background(), pending(id)))
	}

	w := NewWorker(WorkerConfig{Queue: q, Dispatcher: d, Store: store})
	w.Start(context.Background())
	require.NoError(t, w.Drain(5*time.Second))

	updates, got, _ := store.snapshot()
	assert.Equal(t, want, updates)
	assert.Equal(t, notification.StatusPartiallySent, got["n1"])
	assert.Equal(t, notification.StatusFailed, got["n2"])
}

func TestWorker_ContinuesAfterFailures(t *testing.T) {
	q := NewQueue(10)
	store := &FakeStore{UpdateFn: func(_ context.Context, id string) error {
		if id == "bad-store" {
			return alerterr.Persistence("update_status", errors.New("db down"))
		}
		return nil
	}}
	d := &FakeDispatcher{DispatchFn: func(_ context.Context, n *notification.Notification) sender.Result {
		if n.ID == "boom" {
			panic("sender bug")
		}
		return sender.Result{Status: notification.StatusFailed, Outcomes: []sender.Outcome{{Channel: "webhook", Err: errors.New("502")}}}
	}}

	for _, id := range []string{"boom", "bad-store", "ok"} {
		require.NoError(t, q.Enqueue(context.Background(), pending(id)))
	}

	w := NewWorker(WorkerConfig{Queue: q, Dispatcher: d, Store: store})
	w.Start(context.Background())
	require.NoError(t, w.Drain(time.Second))

	updates, _, logs := store.snapshot()
	assert.Equal(t, []string{"ok"}, updates)
	assert.Contains(t, logs, "ok:"+database.ActionDispatched)
	assert.Contains(t, logs, "ok:"+database.ActionChannelFailed)
	assert.Contains(t, logs, "bad-store:"+database.ActionDispatched)
}

func TestWorker_RecordsStatsAndPublishes(t *testing.T) {
	q := NewQueue(10)
	agg, err := stats.New(nil, 10, 0)
	require.NoError(t, err)
	pub := &fakePublisher{}

	w := NewWorker(WorkerConfig{Queue: q, Dispatcher: statusDispatcher(notification.StatusSent), Stats: agg, Publisher: pub})
	n := pending("n1")
	require.NoError(t, q.Enqueue(context.Background(), n))
	w.Start(context.Background())
	require.NoError(t, w.Drain(time.Second))

	s := agg.Snapshot()
	assert.EqualValues(t, 1, s.Total)
	require.Len(t, s.Recent, 1)
	assert.Equal(t, notification.StatusSent, s.Recent[0].Status)
	assert.NotNil(t, n.SentAt)
	assert.Equal(t, []string{MessageTypeAlert, MessageTypeStats}, pub.types)
	assert.Equal(t, []notification.Status{notification.StatusSent}, pub.statuses)
}

func TestWorker_PublishesAlertWithFinalStatus(t *testing.T) {
	q := NewQueue(10)
	pub := &fakePublisher{}
	d := &FakeDispatcher{DispatchFn: func(context.Context, *notification.Notification) sender.Result {
		return sender.Result{Status: notification.StatusPartiallySent, Outcomes: []sender.Outcome{
			{Channel: "slack", Err: errors.New("503")},
			{Channel: "webhook"},
		}}
	}}

	// No broadcast channel on the notification: the live feed still gets it.
	n := pending("n1")
	n.Channels = []string{"slack", "webhook"}
	require.NoError(t, q.Enqueue(context.Background(), n))

	w := NewWorker(WorkerConfig{Queue: q, Dispatcher: d, Publisher: pub})
	w.Start(context.Background())
	require.NoError(t, w.Drain(time.Second))

	assert.Equal(t, []string{MessageTypeAlert}, pub.types)
	assert.Equal(t, []notification.Status{notification.StatusPartiallySent}, pub.statuses)
}

func TestWorker_DrainRightAfterStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		q := NewQueue(10)
		store := &FakeStore{}
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, q.Enqueue(context.Background(), pending(id)))
		}

		w := NewWorker(WorkerConfig{Queue: q, Dispatcher: statusDispatcher(notification.StatusSent), Store: store})
		w.Start(context.Background())
		require.NoError(t, w.Drain(5*time.Second))

		updates, _, _ := store.snapshot()
		require.Equal(t, []string{"a", "b", "c"}, updates)
		require.Zero(t, q.Len())
	}
}

func TestWorker_StartTwice(t *testing.T) {
	q := NewQueue(10)
	store := &FakeStore{}
	require.NoError(t, q.Enqueue(context.Background(), pending("a")))

	w := NewWorker(WorkerConfig{Queue: q, Dispatcher: statusDispatcher(notification.StatusSent), Store: store})
	w.Start(context.Background())
	w.Start(context.Background())
	require.NoError(t, w.Drain(time.Second))

	updates, _, _ := store.snapshot()
	assert.Equal(t, []string{"a"}, updates)
}

func TestWorker_HungStoreDoesNotStallQueue(t *testing.T) {
	q := NewQueue(10)
	store := &FakeStore{UpdateFn: func(ctx context.Context, id string) error {
		if id == "hung" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}}
	require.NoError(t, q.Enqueue(context.Background(), pending("hung")))
	require.NoError(t, q.Enqueue(context.Background(), pending("next")))

	w := NewWorker(WorkerConfig{
		Queue:        q,
		Dispatcher:   statusDispatcher(notification.StatusSent),
		Store:        store,
		StoreTimeout: 20 * time.Millisecond,
	})
	w.Start(context.Background())
	require.NoError(t, w.Drain(2*time.Second))

	updates, _, logs := store.snapshot()
	assert.Equal(t, []string{"next"}, updates)
	assert.Contains(t, logs, "next:"+database.ActionDispatched)
}

func TestWorker_DrainTimeoutLeavesPending(t *testing.T) {
	q := NewQueue(10)
	store := &FakeStore{}
	started := make(chan struct{})
	var once sync.Once
	d := &FakeDispatcher{DispatchFn: func(ctx context.Context, _ *notification.Notification) sender.Result {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return sender.Result{Status: notification.StatusFailed}
	}}

	require.NoError(t, q.Enqueue(context.Background(), pending("slow")))
	require.NoError(t, q.Enqueue(context.Background(), pending("waiting")))

	w := NewWorker(WorkerConfig{Queue: q, Dispatcher: d, Store: store})
	w.Start(context.Background())
	<-started

	err := w.Drain(30 * time.Millisecond)
	assert.Error(t, err)

	updates, _, _ := store.snapshot()
	assert.Empty(t, updates, "interrupted notifications must stay pending")
	assert.Equal(t, 1, q.Len())
}

func TestWorker_DrainWithoutStart(t *testing.T) {
	q := NewQueue(10)
	require.NoError(t, q.Enqueue(context.Background(), pending("a")))
	w := NewWorker(WorkerConfig{Queue: q, Dispatcher: statusDispatcher(notification.StatusSent)})

	assert.NoError(t, w.Drain(time.Second))
	assert.True(t, q.Closed())
}
