// Package metrics provides metrics recording interfaces for the alert engine.
// It uses the null object pattern to avoid nil checks throughout the codebase.
package metrics

import "time"

// Recorder defines the interface for recording engine metrics.
// Implementations can record to various backends (Redis, Prometheus, etc.)
type Recorder interface {
	// RecordReceived increments the count of ingested events.
	RecordReceived()

	// RecordMatched increments the count of rule matches, suppressed or not.
	RecordMatched()

	// RecordSuppressed increments the count of matches dropped by cooldown.
	RecordSuppressed()

	// RecordDuplicate increments the count of notifications that already existed.
	RecordDuplicate()

	// RecordEnqueued increments the count of notifications handed to the dispatch queue.
	RecordEnqueued()

	// RecordChannelSend records one channel delivery attempt.
	RecordChannelSend(channel string, ok bool, latency time.Duration)

	// RecordDispatched records a dispatched notification with its final status.
	RecordDispatched(status string, latency time.Duration)

	// RecordError increments the error counter.
	RecordError()
}

// NoOp is a no-op implementation of Recorder that discards all metrics.
// Use this when metrics collection is not configured.
type NoOp struct{}

// NewNoOp creates a new no-op metrics recorder.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (n *NoOp) RecordReceived()                                     {}
func (n *NoOp) RecordMatched()                                      {}
func (n *NoOp) RecordSuppressed()                                   {}
func (n *NoOp) RecordDuplicate()                                    {}
func (n *NoOp) RecordEnqueued()                                     {}
func (n *NoOp) RecordChannelSend(_ string, _ bool, _ time.Duration) {}
func (n *NoOp) RecordDispatched(_ string, _ time.Duration)          {}
func (n *NoOp) RecordError()                                        {}

// Ensure NoOp implements Recorder
var _ Recorder = (*NoOp)(nil)

// Multi fans every call out to several recorders.
type Multi []Recorder

func (m Multi) RecordReceived() {
	for _, r := range m {
		r.RecordReceived()
	}
}

func (m Multi) RecordMatched() {
	for _, r := range m {
		r.RecordMatched()
	}
}

func (m Multi) RecordSuppressed() {
	for _, r := range m {
		r.RecordSuppressed()
	}
}

func (m Multi) RecordDuplicate() {
	for _, r := range m {
		r.RecordDuplicate()
	}
}

func (m Multi) RecordEnqueued() {
	for _, r := range m {
		r.RecordEnqueued()
	}
}

func (m Multi) RecordChannelSend(channel string, ok bool, latency time.Duration) {
	for _, r := range m {
		r.RecordChannelSend(channel, ok, latency)
	}
}

func (m Multi) RecordDispatched(status string, latency time.Duration) {
	for _, r := range m {
		r.RecordDispatched(status, latency)
	}
}

func (m Multi) RecordError() {
	for _, r := range m {
		r.RecordError()
	}
}

var _ Recorder = Multi(nil)
