package stats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afikmenashe/alert-engine/internal/database"
	"github.com/afikmenashe/alert-engine/internal/notification"
)

type FakeStore struct {
	TotalFn    func() (int64, error)
	SeverityFn func() (database.Counts, error)
	RegionFn   func() (database.Counts, error)
	RecentFn   func(n int) ([]*notification.Notification, error)
	gotWindow  time.Duration
}

func (f *FakeStore) TotalNotifications(_ context.Context, w time.Duration) (int64, error) {
	f.gotWindow = w
	return f.TotalFn()
}

func (f *FakeStore) CountsBySeverity(context.Context, time.Duration) (database.Counts, error) {
	return f.SeverityFn()
}

func (f *FakeStore) CountsByRegion(context.Context, time.Duration) (database.Counts, error) {
	return f.RegionFn()
}

func (f *FakeStore) Recent(_ context.Context, n int) ([]*notification.Notification, error) {
	return f.RecentFn(n)
}

type fakeSink struct {
	snapshots []Snapshot
}

func (f *fakeSink) Write(_ context.Context, s Snapshot) error {
	f.snapshots = append(f.snapshots, s)
	return nil
}

func notif(id, severity, region string) *notification.Notification {
	return &notification.Notification{ID: id, RuleID: "r1", Severity: severity, Region: region, Status: notification.StatusSent}
}

func TestAggregator_Record(t *testing.T) {
	a, err := New(nil, 10, 0)
	require.NoError(t, err)

	a.Record(notif("n1", "critical", "ukraine"))
	a.Record(notif("n2", "high", "ukraine"))
	a.Record(notif("n3", "critical", "asia"))

	s := a.Snapshot()
	assert.EqualValues(t, 3, s.Total)
	assert.Equal(t, map[string]int64{"critical": 2, "high": 1}, s.BySeverity)
	assert.Equal(t, map[string]int64{"ukraine": 2, "asia": 1}, s.ByRegion)
	require.Len(t, s.Recent, 3)
	assert.Equal(t, "n3", s.Recent[0].ID, "recent is newest first")
}

func TestAggregator_RecordSameIDCountsOnce(t *testing.T) {
	a, _ := New(nil, 10, 0)
	a.Record(notif("n1", "low", "asia"))
	a.Record(notif("n1", "low", "asia"))

	s := a.Snapshot()
	assert.EqualValues(t, 1, s.Total)
	assert.Len(t, s.Recent, 1)
}

func TestAggregator_RecentEvictsOldest(t *testing.T) {
	a, _ := New(nil, 3, 0)
	for i := 1; i <= 5; i++ {
		a.Record(notif(fmt.Sprintf("n%d", i), "low", "asia"))
	}

	s := a.Snapshot()
	assert.EqualValues(t, 5, s.Total)
	ids := make([]string, 0, len(s.Recent))
	for _, item := range s.Recent {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"n5", "n4", "n3"}, ids)
}

func TestAggregator_SnapshotIsCopy(t *testing.T) {
	a, _ := New(nil, 10, 0)
	a.Record(notif("n1", "low", "asia"))

	s := a.Snapshot()
	s.BySeverity["low"] = 99
	assert.EqualValues(t, 1, a.Snapshot().BySeverity["low"])
}

func TestAggregator_Reconcile(t *testing.T) {
	store := &FakeStore{
		TotalFn:    func() (int64, error) { return 42, nil },
		SeverityFn: func() (database.Counts, error) { return database.Counts{"critical": 40, "low": 2}, nil },
		RegionFn:   func() (database.Counts, error) { return database.Counts{"ukraine": 42}, nil },
		RecentFn: func(n int) ([]*notification.Notification, error) {
			assert.Equal(t, 2, n)
			return []*notification.Notification{notif("new", "critical", "ukraine"), notif("old", "low", "ukraine")}, nil
		},
	}
	sink := &fakeSink{}
	a, _ := New(store, 2, 24*time.Hour, WithSink(sink))
	a.Record(notif("stale", "high", "asia"))

	require.NoError(t, a.Reconcile(context.Background()))

	s := a.Snapshot()
	assert.Equal(t, 24*time.Hour, store.gotWindow)
	assert.EqualValues(t, 42, s.Total)
	assert.Equal(t, map[string]int64{"critical": 40, "low": 2}, s.BySeverity)
	assert.Equal(t, map[string]int64{"ukraine": 42}, s.ByRegion)
	require.Len(t, s.Recent, 2)
	assert.Equal(t, "new", s.Recent[0].ID)
	assert.Equal(t, "old", s.Recent[1].ID)

	require.Len(t, sink.snapshots, 1)
	assert.EqualValues(t, 42, sink.snapshots[0].Total)

	// Oldest reconciled entry is evicted first.
	a.Record(notif("next", "low", "asia"))
	s = a.Snapshot()
	assert.Equal(t, "next", s.Recent[0].ID)
	assert.Equal(t, "new", s.Recent[1].ID)
}

func TestAggregator_ReconcileErrorKeepsState(t *testing.T) {
	store := &FakeStore{
		TotalFn: func() (int64, error) { return 0, errors.New("db down") },
	}
	a, _ := New(store, 10, 0)
	a.Record(notif("n1", "low", "asia"))

	assert.Error(t, a.Reconcile(context.Background()))
	assert.EqualValues(t, 1, a.Snapshot().Total)
}

func TestAggregator_UpdatedAtUsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a, _ := New(nil, 10, 0, WithClock(func() time.Time { return fixed }))
	a.Record(notif("n1", "low", "asia"))
	assert.Equal(t, fixed, a.Snapshot().UpdatedAt)
}

func TestAggregator_RunStopsOnCancel(t *testing.T) {
	store := &FakeStore{
		TotalFn:    func() (int64, error) { return 1, nil },
		SeverityFn: func() (database.Counts, error) { return database.Counts{}, nil },
		RegionFn:   func() (database.Counts, error) { return database.Counts{}, nil },
		RecentFn:   func(int) ([]*notification.Notification, error) { return nil, nil },
	}
	a, _ := New(store, 10, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return a.Snapshot().Total == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
