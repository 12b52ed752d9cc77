// Package metrics reports service counters to Redis so a platform
// dashboard can read the health of every running alert engine.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for service metrics.
	KeyPrefix = "metrics:"
	// TTL is how long metrics stay in Redis if not refreshed.
	TTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics is the document written under KeyPrefix + service name.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	InstanceID  string    `json:"instance_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"` // "healthy" or "unhealthy"

	EventsReceived          uint64 `json:"events_received"`
	NotificationsDispatched uint64 `json:"notifications_dispatched"`
	NotificationsDelivered  uint64 `json:"notifications_delivered"`
	ProcessingErrors        uint64 `json:"processing_errors"`

	// Dispatches per second over the last report interval.
	DispatchRate float64 `json:"dispatch_rate"`

	AvgDispatchLatencyMs float64 `json:"avg_dispatch_latency_ms"`

	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector accumulates counters and periodically writes them to Redis.
// A nil Redis client turns writes into no-ops.
type Collector struct {
	serviceName    string
	instanceID     string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	eventsReceived  atomic.Uint64
	dispatched      atomic.Uint64
	delivered       atomic.Uint64
	processingError atomic.Uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	rateMu         sync.Mutex
	lastReportTime time.Time
	lastDispatched uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a new metrics collector for a service.
func NewCollector(serviceName, instanceID string, redisClient *redis.Client) *Collector {
	now := time.Now().UTC()
	return &Collector{
		serviceName:    serviceName,
		instanceID:     instanceID,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		lastReportTime: now,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	if interval > 0 {
		c.reportInterval = interval
	}
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordReceived counts one ingested event.
func (c *Collector) RecordReceived() {
	c.eventsReceived.Add(1)
}

// RecordDispatched counts one notification that left the dispatch worker.
// delivered is true when at least one channel accepted it.
func (c *Collector) RecordDispatched(delivered bool, latency time.Duration) {
	c.dispatched.Add(1)
	if delivered {
		c.delivered.Add(1)
	}
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// RecordError increments the processing errors counter.
func (c *Collector) RecordError() {
	c.processingError.Add(1)
}

// IncrementCustom increments a custom counter by name.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds a value to a custom counter.
func (c *Collector) AddCustom(name string, value uint64) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(value)
}

// Snapshot returns current metrics without writing to Redis.
func (c *Collector) Snapshot() *ServiceMetrics {
	now := time.Now().UTC()
	dispatched := c.dispatched.Load()

	c.rateMu.Lock()
	elapsed := now.Sub(c.lastReportTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(dispatched-c.lastDispatched) / elapsed
	}
	c.rateMu.Unlock()

	var avgLatencyMs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyMs = float64(c.totalLatencyNs.Load()) / float64(n) / float64(time.Millisecond)
	}

	c.customMu.RLock()
	custom := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		custom[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:             c.serviceName,
		InstanceID:              c.instanceID,
		StartedAt:               c.startedAt,
		LastUpdated:             now,
		Status:                  "healthy",
		EventsReceived:          c.eventsReceived.Load(),
		NotificationsDispatched: dispatched,
		NotificationsDelivered:  c.delivered.Load(),
		ProcessingErrors:        c.processingError.Load(),
		DispatchRate:            rate,
		AvgDispatchLatencyMs:    avgLatencyMs,
		CustomCounters:          custom,
	}
}

// Key returns the Redis key the collector writes to.
func (c *Collector) Key() string {
	if c.instanceID == "" {
		return KeyPrefix + c.serviceName
	}
	return KeyPrefix + c.serviceName + ":" + c.instanceID
}

func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	m := c.Snapshot()

	c.rateMu.Lock()
	c.lastReportTime = m.LastUpdated
	c.lastDispatched = m.NotificationsDispatched
	c.rateMu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := c.Key()
	if err := c.redis.Set(ctx, key, data, TTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}

// Reader reads service metrics from Redis.
type Reader struct {
	redis *redis.Client
}

// NewReader creates a new metrics reader.
func NewReader(redisClient *redis.Client) *Reader {
	return &Reader{redis: redisClient}
}

// ErrNoMetrics is returned when a key has no metrics document.
var ErrNoMetrics = errors.New("no metrics found")

// Get retrieves the metrics document stored under key (without prefix).
func (r *Reader) Get(ctx context.Context, name string) (*ServiceMetrics, error) {
	data, err := r.redis.Get(ctx, KeyPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w for %s", ErrNoMetrics, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}
	return Decode(data)
}

// All retrieves every metrics document, keyed by name without prefix.
func (r *Reader) All(ctx context.Context) (map[string]*ServiceMetrics, error) {
	keys, err := r.redis.Keys(ctx, KeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics keys: %w", err)
	}
	sort.Strings(keys)

	result := make(map[string]*ServiceMetrics, len(keys))
	for _, key := range keys {
		name := key[len(KeyPrefix):]
		m, err := r.Get(ctx, name)
		if err != nil {
			slog.Warn("Failed to read metrics for service", "service", name, "error", err)
			continue
		}
		result[name] = m
	}
	return result, nil
}

// Decode parses a metrics document and marks it unhealthy when stale.
func Decode(data []byte) (*ServiceMetrics, error) {
	var m ServiceMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if time.Since(m.LastUpdated) > TTL {
		m.Status = "unhealthy"
	}
	return &m, nil
}
