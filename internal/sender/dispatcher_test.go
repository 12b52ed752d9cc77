package sender

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/sender/strategy"
)

// FakeSender is a channel sender driven by SendFn.
type FakeSender struct {
	Name   string
	SendFn func(ctx context.Context, n *notification.Notification) error
	calls  int
}

func (f *FakeSender) Type() string { return f.Name }

func (f *FakeSender) Send(ctx context.Context, n *notification.Notification) error {
	f.calls++
	if f.SendFn == nil {
		return nil
	}
	return f.SendFn(ctx, n)
}

func failing(name string) *FakeSender {
	return &FakeSender{Name: name, SendFn: func(context.Context, *notification.Notification) error {
		return errors.New(name + " down")
	}}
}

func newDispatcher(timeout time.Duration, senders ...strategy.NotificationSender) *Dispatcher {
	r := strategy.NewRegistry()
	for _, s := range senders {
		r.Register(s)
	}
	return NewDispatcher(r, timeout, nil)
}

func TestDispatch_StatusAggregation(t *testing.T) {
	tests := []struct {
		name     string
		channels []string
		want     notification.Status
	}{
		{"all succeed", []string{"broadcast", "email"}, notification.StatusSent},
		{"one fails", []string{"slack", "broadcast"}, notification.StatusPartiallySent},
		{"all fail", []string{"slack", "webhook"}, notification.StatusFailed},
		{"no channels", nil, notification.StatusFailed},
		{"unknown channel", []string{"pager"}, notification.StatusFailed},
		{"unknown plus good", []string{"pager", "email"}, notification.StatusPartiallySent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher(time.Second,
				&FakeSender{Name: "broadcast"},
				&FakeSender{Name: "email"},
				failing("slack"),
				failing("webhook"),
			)
			res := d.Dispatch(context.Background(), &notification.Notification{ID: "n1", Channels: tt.channels})
			assert.Equal(t, tt.want, res.Status)
			assert.Len(t, res.Outcomes, len(tt.channels))
		})
	}
}

func TestDispatch_PartialFailureIsolation(t *testing.T) {
	slack := failing("slack")
	var received *notification.Notification
	broadcast := &FakeSender{Name: "broadcast", SendFn: func(_ context.Context, n *notification.Notification) error {
		received = n
		return nil
	}}
	d := newDispatcher(time.Second, slack, broadcast)

	n := &notification.Notification{ID: "n1", Channels: []string{"slack", "broadcast"}}
	res := d.Dispatch(context.Background(), n)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, notification.StatusPartiallySent, res.Status)
	assert.Equal(t, "slack", res.Outcomes[0].Channel)
	assert.False(t, res.Outcomes[0].OK())
	assert.True(t, res.Outcomes[1].OK())
	assert.Same(t, n, received)

	var de *alerterr.ChannelDeliveryError
	require.ErrorAs(t, res.Outcomes[0].Err, &de)
	assert.Equal(t, "slack", de.Channel)
	assert.Equal(t, "n1", de.NotificationID)
	assert.Len(t, res.Failed(), 1)
}

func TestDispatch_UnknownChannelError(t *testing.T) {
	d := newDispatcher(time.Second)
	res := d.Dispatch(context.Background(), &notification.Notification{ID: "n1", Channels: []string{"sms"}})

	require.Len(t, res.Outcomes, 1)
	assert.ErrorIs(t, res.Outcomes[0].Err, alerterr.ErrUnknownChannel)
}

func TestDispatch_PerSendTimeout(t *testing.T) {
	slow := &FakeSender{Name: "webhook", SendFn: func(ctx context.Context, _ *notification.Notification) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	fast := &FakeSender{Name: "email"}
	d := newDispatcher(30*time.Millisecond, slow, fast)

	start := time.Now()
	res := d.Dispatch(context.Background(), &notification.Notification{ID: "n1", Channels: []string{"webhook", "email"}})

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, notification.StatusPartiallySent, res.Status)
	assert.ErrorIs(t, res.Outcomes[0].Err, context.DeadlineExceeded)
	assert.Equal(t, 1, fast.calls)
}

func TestDispatch_ChannelOrder(t *testing.T) {
	var order []string
	record := func(name string) *FakeSender {
		return &FakeSender{Name: name, SendFn: func(context.Context, *notification.Notification) error {
			order = append(order, name)
			return nil
		}}
	}
	d := newDispatcher(time.Second, record("a"), record("b"), record("c"))

	d.Dispatch(context.Background(), &notification.Notification{ID: "n1", Channels: []string{"c", "a", "b"}})
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestNewDispatcher_DefaultTimeout(t *testing.T) {
	d := NewDispatcher(strategy.NewRegistry(), 0, nil)
	assert.Equal(t, DefaultSendTimeout, d.timeout)
}
