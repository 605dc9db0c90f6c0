package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/storyqa/storyqa/internal/config"
	"github.com/storyqa/storyqa/internal/domain"
)

// Key prefixes. The LLM completion cache writes its own "llm:" keys
// through the shared client, see internal/llm.
const (
	PrefixReport    = "report:"
	PrefixRateLimit = "ratelimit:"
)

const (
	ReportTTL       = 24 * time.Hour
	RateLimitWindow = 1 * time.Minute
)

// Cache wraps the shared Redis connection with the namespaced helpers
// the pipeline needs: report caching, API rate limiting, run progress
// events.
type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Health checks Redis connectivity.
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client exposes the underlying connection for components that manage
// their own key namespace, such as the LLM response cache.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Report caching

// SetLatestReport caches the most recently rendered HTML report for
// the download endpoint.
func (c *Cache) SetLatestReport(ctx context.Context, data []byte) error {
	return c.client.Set(ctx, PrefixReport+"latest", data, ReportTTL).Err()
}

// LatestReport returns the cached HTML report, nil on miss.
func (c *Cache) LatestReport(ctx context.Context) ([]byte, error) {
	data, err := c.client.Get(ctx, PrefixReport+"latest").Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Rate limiting

// CheckRateLimit increments the caller's window counter and reports
// whether it is within limit. The expiry rides the same pipeline as
// the increment so a crash between the two cannot leave an immortal
// counter.
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int) (bool, int, error) {
	fullKey := PrefixRateLimit + key

	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, RateLimitWindow)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(incr.Val())
	return count <= limit, count, nil
}

// Run progress pub/sub

// ProgressEvent is one execution progress tick on a run's channel.
type ProgressEvent struct {
	RunID  uuid.UUID         `json:"run_id"`
	Done   int               `json:"done"`
	Total  int               `json:"total"`
	TCID   string            `json:"tc_id,omitempty"`
	Status domain.ExecStatus `json:"status,omitempty"`
}

func runProgressChannel(runID uuid.UUID) string {
	return "run:progress:" + runID.String()
}

// PublishRunProgress emits a progress event for live run watchers.
// Events are transient; nobody listening is not an error.
func (c *Cache) PublishRunProgress(ctx context.Context, ev ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, runProgressChannel(ev.RunID), data).Err()
}

// WatchRunProgress subscribes to a run's progress channel and decodes
// events onto the returned channel until ctx ends or stop is called.
// The caller must call stop; the event channel closes once the
// subscription is done. Malformed payloads are skipped.
func (c *Cache) WatchRunProgress(ctx context.Context, runID uuid.UUID) (<-chan ProgressEvent, func() error) {
	sub := c.client.Subscribe(ctx, runProgressChannel(runID))
	out := make(chan ProgressEvent)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close
}
