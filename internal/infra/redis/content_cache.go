package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ContentCache caches the bank and groups in Redis and falls back to a loader on cache miss.
// The bank is stored as:  SET quiz:bank          <json []Question>
// Groups are stored as:   SET quiz:group:{id}    <json Group>
type ContentCache struct {
	client *redis.Client
	loader app.ContentProvider
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewContentCache(client *redis.Client, loader app.ContentProvider, ttl time.Duration) *ContentCache {
	return &ContentCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ContentCache) FetchBank(ctx context.Context) ([]domain.Question, error) {
	var bank []domain.Question
	if c.readJSON(ctx, c.bankKey(), &bank) {
		telemetry.ContentLookups.WithLabelValues("redis", telemetry.ResultHit).Inc()
		return bank, nil
	}
	telemetry.ContentLookups.WithLabelValues("redis", telemetry.ResultMiss).Inc()

	result, err, _ := c.sf.Do(c.bankKey(), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		var cached []domain.Question
		if c.readJSON(ctx, c.bankKey(), &cached) {
			return cached, nil
		}
		bank, err := c.loader.FetchBank(ctx)
		if err != nil {
			return nil, err
		}
		c.writeJSON(ctx, c.bankKey(), bank)
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *ContentCache) FetchGroup(ctx context.Context, groupID string) (domain.Group, error) {
	key := c.groupKey(groupID)
	var group domain.Group
	if c.readJSON(ctx, key, &group) {
		telemetry.ContentLookups.WithLabelValues("redis", telemetry.ResultHit).Inc()
		return group, nil
	}
	telemetry.ContentLookups.WithLabelValues("redis", telemetry.ResultMiss).Inc()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var cached domain.Group
		if c.readJSON(ctx, key, &cached) {
			return cached, nil
		}
		group, err := c.loader.FetchGroup(ctx, groupID)
		if err != nil {
			return domain.Group{}, err
		}
		c.writeJSON(ctx, key, group)
		return group, nil
	})
	if err != nil {
		return domain.Group{}, err
	}
	return result.(domain.Group), nil
}

func (c *ContentCache) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return c.loader.ListGroups(ctx)
}

// Invalidate drops the cached bank and the given groups.
func (c *ContentCache) Invalidate(ctx context.Context, groupIDs ...string) error {
	keys := []string{c.bankKey()}
	for _, id := range groupIDs {
		keys = append(keys, c.groupKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *ContentCache) readJSON(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("redis content read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("redis content decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// writeJSON is best effort; a failed write only costs a later reload.
func (c *ContentCache) writeJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err(); err != nil {
		slog.Warn("redis content write failed", "key", key, "error", err)
	}
}

func (c *ContentCache) bankKey() string {
	return "quiz:bank"
}

func (c *ContentCache) groupKey(groupID string) string {
	return "quiz:group:" + groupID
}

func (c *ContentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
