package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/telemetry"
	"golang.org/x/sync/singleflight"
)

const bankKey = "bank"

// ContentCache caches the bank and groups of a backing provider with TTL to avoid repeated DB hits.
type ContentCache struct {
	loader app.ContentProvider
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu     sync.RWMutex
	rnd    *rand.Rand
	bank   *cachedBank
	groups map[string]cachedGroup
}

type cachedBank struct {
	questions []domain.Question
	expiresAt time.Time
}

type cachedGroup struct {
	group     domain.Group
	expiresAt time.Time
}

func NewContentCache(loader app.ContentProvider, ttl time.Duration) *ContentCache {
	return &ContentCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		groups: make(map[string]cachedGroup),
	}
}

func (c *ContentCache) FetchBank(ctx context.Context) ([]domain.Question, error) {
	if bank, ok := c.cachedBank(); ok {
		telemetry.ContentLookups.WithLabelValues("memory", telemetry.ResultHit).Inc()
		return bank, nil
	}
	telemetry.ContentLookups.WithLabelValues("memory", telemetry.ResultMiss).Inc()

	result, err, _ := c.sf.Do(bankKey, func() (interface{}, error) {
		if bank, ok := c.cachedBank(); ok {
			return bank, nil
		}
		bank, err := c.loader.FetchBank(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.bank = &cachedBank{questions: bank, expiresAt: c.clock().Add(c.ttlWithJitterLocked())}
		c.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *ContentCache) FetchGroup(ctx context.Context, groupID string) (domain.Group, error) {
	if group, ok := c.cachedGroup(groupID); ok {
		telemetry.ContentLookups.WithLabelValues("memory", telemetry.ResultHit).Inc()
		return group, nil
	}
	telemetry.ContentLookups.WithLabelValues("memory", telemetry.ResultMiss).Inc()

	result, err, _ := c.sf.Do("group:"+groupID, func() (interface{}, error) {
		if group, ok := c.cachedGroup(groupID); ok {
			return group, nil
		}
		group, err := c.loader.FetchGroup(ctx, groupID)
		if err != nil {
			return domain.Group{}, err
		}
		c.mu.Lock()
		c.groups[groupID] = cachedGroup{group: group, expiresAt: c.clock().Add(c.ttlWithJitterLocked())}
		c.mu.Unlock()
		return group, nil
	})
	if err != nil {
		return domain.Group{}, err
	}
	return result.(domain.Group), nil
}

// ListGroups is not cached; it backs an infrequent listing.
func (c *ContentCache) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return c.loader.ListGroups(ctx)
}

func (c *ContentCache) cachedBank() ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bank != nil && c.bank.expiresAt.After(c.clock()) {
		return c.bank.questions, true
	}
	return nil, false
}

func (c *ContentCache) cachedGroup(groupID string) (domain.Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.groups[groupID]; ok && entry.expiresAt.After(c.clock()) {
		return entry.group, true
	}
	return domain.Group{}, false
}

func (c *ContentCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
