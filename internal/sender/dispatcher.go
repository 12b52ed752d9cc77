// Package sender routes a notification to each of its channels and folds
// the per-channel outcomes into a delivery status.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/metrics"
	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/sender/strategy"
)

// DefaultSendTimeout bounds a single channel send.
const DefaultSendTimeout = 15 * time.Second

// Outcome is the result of delivering to one channel.
type Outcome struct {
	Channel string
	Err     error
	Latency time.Duration
}

// OK reports whether the channel accepted the notification.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Result is the aggregate of one dispatch.
type Result struct {
	Status   notification.Status
	Outcomes []Outcome
}

// Failed returns the outcomes that carry an error.
func (r Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Dispatcher delivers notifications through the registered senders.
type Dispatcher struct {
	registry *strategy.Registry
	timeout  time.Duration
	metrics  metrics.Recorder
}

// NewDispatcher creates a dispatcher. A non-positive timeout uses
// DefaultSendTimeout; a nil recorder discards metrics.
func NewDispatcher(registry *strategy.Registry, timeout time.Duration, recorder metrics.Recorder) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	if recorder == nil {
		recorder = metrics.NewNoOp()
	}
	return &Dispatcher{
		registry: registry,
		timeout:  timeout,
		metrics:  recorder,
	}
}

// Dispatch sends n to each of its channels in order. A failing or unknown
// channel never prevents the remaining channels from being attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, n *notification.Notification) Result {
	outcomes := make([]Outcome, 0, len(n.Channels))
	for _, channel := range n.Channels {
		outcomes = append(outcomes, d.send(ctx, channel, n))
	}
	return Result{
		Status:   StatusFor(outcomes),
		Outcomes: outcomes,
	}
}

func (d *Dispatcher) send(ctx context.Context, channel string, n *notification.Notification) Outcome {
	s, ok := d.registry.Get(channel)
	if !ok {
		err := &alerterr.ChannelDeliveryError{Channel: channel, NotificationID: n.ID, Err: alerterr.ErrUnknownChannel}
		slog.Warn("Unknown channel, counting as failed",
			"notification_id", n.ID,
			"channel", channel,
		)
		d.metrics.RecordChannelSend(channel, false, 0)
		return Outcome{Channel: channel, Err: err}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := s.Send(sendCtx, n)
	latency := time.Since(start)
	d.metrics.RecordChannelSend(channel, err == nil, latency)

	if err != nil {
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			slog.Warn("Channel send timed out",
				"notification_id", n.ID,
				"channel", channel,
				"timeout", d.timeout,
			)
		}
		slog.Error("Channel delivery failed",
			"notification_id", n.ID,
			"rule_id", n.RuleID,
			"channel", channel,
			"latency", latency,
			"error", err,
		)
		return Outcome{
			Channel: channel,
			Err:     &alerterr.ChannelDeliveryError{Channel: channel, NotificationID: n.ID, Err: err},
			Latency: latency,
		}
	}

	slog.Debug("Channel delivery succeeded",
		"notification_id", n.ID,
		"channel", channel,
		"latency", latency,
	)
	return Outcome{Channel: channel, Latency: latency}
}

// StatusFor folds channel outcomes into a terminal status: sent when all
// succeeded, partially-sent when some did, failed when none did or there
// were no channels at all.
func StatusFor(outcomes []Outcome) notification.Status {
	succeeded := 0
	for _, o := range outcomes {
		if o.OK() {
			succeeded++
		}
	}
	switch {
	case len(outcomes) > 0 && succeeded == len(outcomes):
		return notification.StatusSent
	case succeeded > 0:
		return notification.StatusPartiallySent
	default:
		return notification.StatusFailed
	}
}
