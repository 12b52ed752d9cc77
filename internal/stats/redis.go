package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is where the snapshot mirror is written.
const DefaultRedisKey = "alert-engine:stats"

// RedisSink writes snapshots to a Redis key with a TTL so other services
// can read the dashboard summary without calling the engine.
type RedisSink struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisSink creates a sink writing to key. An empty key uses
// DefaultRedisKey.
func NewRedisSink(client *redis.Client, key string, ttl time.Duration) *RedisSink {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSink{client: client, key: key, ttl: ttl}
}

// Write stores s as JSON.
func (r *RedisSink) Write(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal stats snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write stats snapshot to Redis: %w", err)
	}
	return nil
}
