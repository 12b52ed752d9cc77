package metrics

import (
	"time"

	"github.com/afikmenashe/alert-engine/pkg/metrics"
)

// CollectorAdapter adapts pkg/metrics.Collector to the Recorder interface.
type CollectorAdapter struct {
	collector *metrics.Collector
}

// NewCollectorAdapter wraps a metrics.Collector to implement Recorder.
func NewCollectorAdapter(collector *metrics.Collector) *CollectorAdapter {
	return &CollectorAdapter{collector: collector}
}

func (a *CollectorAdapter) RecordReceived() {
	a.collector.RecordReceived()
}

func (a *CollectorAdapter) RecordMatched() {
	a.collector.IncrementCustom("rules_matched")
}

func (a *CollectorAdapter) RecordSuppressed() {
	a.collector.IncrementCustom("matches_suppressed")
}

func (a *CollectorAdapter) RecordDuplicate() {
	a.collector.IncrementCustom("notifications_deduplicated")
}

func (a *CollectorAdapter) RecordEnqueued() {
	a.collector.IncrementCustom("notifications_enqueued")
}

func (a *CollectorAdapter) RecordChannelSend(channel string, ok bool, _ time.Duration) {
	if ok {
		a.collector.IncrementCustom("channel_" + channel + "_sent")
		return
	}
	a.collector.IncrementCustom("channel_" + channel + "_failed")
}

func (a *CollectorAdapter) RecordDispatched(status string, latency time.Duration) {
	a.collector.RecordDispatched(status != "failed", latency)
	a.collector.IncrementCustom("notifications_" + status)
}

func (a *CollectorAdapter) RecordError() {
	a.collector.RecordError()
}

// Ensure CollectorAdapter implements Recorder
var _ Recorder = (*CollectorAdapter)(nil)
