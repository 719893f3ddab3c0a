package permcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/canopyhq/canopy/pkg/observability"
)

const keyPrefix = "canopy:perms"

func snapshotKey(userID, sectionID int64) string {
	return fmt.Sprintf("%s:user:%d:section:%d", keyPrefix, userID, sectionID)
}

func userKeyPattern(userID int64) string {
	return fmt.Sprintf("%s:user:%d:*", keyPrefix, userID)
}

type l1Entry struct {
	payload   []byte
	userID    int64
	expiresAt time.Time
}

// Cache is a two-tier store for resolved access snapshots: an in-process
// LRU with TTL in front of redis. Values are opaque JSON payloads so the
// cache stays decoupled from the resolver's types.
type Cache struct {
	l1      *lru.Cache[string, l1Entry]
	client  *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewCache creates a snapshot cache. metrics may be nil in tests.
func NewCache(client *redis.Client, l1Size int, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) (*Cache, error) {
	l1, err := lru.New[string, l1Entry](l1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create l1 cache: %w", err)
	}
	return &Cache{
		l1:      l1,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Get returns the cached snapshot for (userID, sectionID), or ok=false on
// a miss. Redis errors degrade to a miss so the caller recomputes from the
// store.
func (c *Cache) Get(ctx context.Context, userID, sectionID int64) ([]byte, bool) {
	key := snapshotKey(userID, sectionID)

	if entry, ok := c.l1.Get(key); ok {
		if time.Now().Before(entry.expiresAt) {
			c.hit("l1")
			return entry.payload, true
		}
		c.l1.Remove(key)
	}
	c.miss("l1")

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.miss("l2")
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("Permission cache read failed")
		c.miss("l2")
		return nil, false
	}
	c.hit("l2")

	c.l1.Add(key, l1Entry{payload: payload, userID: userID, expiresAt: time.Now().Add(c.ttl)})
	return payload, true
}

// Set stores a snapshot in both tiers. Redis failures are logged, not
// returned; the cache is advisory.
func (c *Cache) Set(ctx context.Context, userID, sectionID int64, payload []byte) {
	key := snapshotKey(userID, sectionID)
	c.l1.Add(key, l1Entry{payload: payload, userID: userID, expiresAt: time.Now().Add(c.ttl)})

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Permission cache write failed")
	}
}

// InvalidateUser drops every snapshot for a user from both tiers
func (c *Cache) InvalidateUser(ctx context.Context, userID int64) error {
	c.invalidateLocal(userID)

	iter := c.client.Scan(ctx, 0, userKeyPattern(userID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan snapshot keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot keys: %w", err)
	}
	return nil
}

// invalidateLocal drops a user's entries from the in-process tier only
func (c *Cache) invalidateLocal(userID int64) {
	prefix := fmt.Sprintf("%s:user:%d:", keyPrefix, userID)
	for _, key := range c.l1.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.l1.Remove(key)
		}
	}
}

// SweepExpired removes expired entries from the in-process tier. Redis
// expires its own keys; the LRU needs a periodic sweep because entries
// are only checked on access.
func (c *Cache) SweepExpired() int {
	now := time.Now()
	removed := 0
	for _, key := range c.l1.Keys() {
		if entry, ok := c.l1.Peek(key); ok && now.After(entry.expiresAt) {
			c.l1.Remove(key)
			removed++
		}
	}
	return removed
}

// Listen subscribes to the push channel and drops local snapshots when
// another instance dispatches an invalidation. Blocks until ctx is done.
func (c *Cache) Listen(ctx context.Context, channel string) error {
	sub := c.client.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				c.logger.WithError(err).Warn("Malformed permissions change event")
				continue
			}
			c.invalidateLocal(event.UserID)
		}
	}
}

func (c *Cache) hit(tier string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *Cache) miss(tier string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}
