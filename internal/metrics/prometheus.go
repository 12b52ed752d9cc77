package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alert_engine"

// Prometheus records engine metrics into its own registry and serves them
// in the Prometheus text format.
type Prometheus struct {
	registry *prometheus.Registry

	events        prometheus.Counter
	matches       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	channelSends  *prometheus.CounterVec
	channelTime   *prometheus.HistogramVec
	dispatchTime  prometheus.Histogram
	errors        prometheus.Counter
}

// NewPrometheus creates and registers the engine metrics.
func NewPrometheus() (*Prometheus, error) {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of classified events ingested",
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_matches_total",
			Help:      "Total number of rule matches by outcome",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notifications by lifecycle status",
		}, []string{"status"}),
		channelSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_sends_total",
			Help:      "Total number of channel delivery attempts",
		}, []string{"channel", "result"}),
		channelTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_send_duration_seconds",
			Help:      "Duration of a single channel delivery attempt",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"channel"}),
		dispatchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of dispatching one notification to all its channels",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of processing errors",
		}),
	}

	collectors := []prometheus.Collector{
		p.events, p.matches, p.notifications, p.channelSends, p.channelTime, p.dispatchTime, p.errors,
	}
	for _, c := range collectors {
		if err := p.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return p, nil
}

// Handler serves the registry for scraping.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) RecordReceived() {
	p.events.Inc()
}

func (p *Prometheus) RecordMatched() {
	p.matches.WithLabelValues("matched").Inc()
}

func (p *Prometheus) RecordSuppressed() {
	p.matches.WithLabelValues("suppressed").Inc()
}

func (p *Prometheus) RecordDuplicate() {
	p.notifications.WithLabelValues("duplicate").Inc()
}

func (p *Prometheus) RecordEnqueued() {
	p.notifications.WithLabelValues("enqueued").Inc()
}

func (p *Prometheus) RecordChannelSend(channel string, ok bool, latency time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	p.channelSends.WithLabelValues(channel, result).Inc()
	p.channelTime.WithLabelValues(channel).Observe(latency.Seconds())
}

func (p *Prometheus) RecordDispatched(status string, latency time.Duration) {
	p.notifications.WithLabelValues(status).Inc()
	p.dispatchTime.Observe(latency.Seconds())
}

func (p *Prometheus) RecordError() {
	p.errors.Inc()
}

var _ Recorder = (*Prometheus)(nil)
