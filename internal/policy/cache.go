// internal/policy/cache.go
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"freshtrack/internal/common/logger"
	"freshtrack/internal/models"
	"freshtrack/internal/store"
)

const cacheKeyPrefix = "freshtrack:policy:"

// Known misses are cached too, so a category with no policy row does not
// hit the database every cycle.
const missSentinel = "__miss__"

// CachedStore layers a Redis read-through cache over another Store.
type CachedStore struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStore(next Store, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedStore {
	return &CachedStore{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

func (c *CachedStore) GetByName(ctx context.Context, name string) (*models.CategoryPolicy, error) {
	key := cacheKeyPrefix + name

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == missSentinel {
			return nil, store.ErrNotFound
		}
		var p models.CategoryPolicy
		if jsonErr := json.Unmarshal([]byte(cached), &p); jsonErr == nil {
			return &p, nil
		}
		// Corrupt entry, fall through to the source and rewrite it.
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Policy cache read failed, falling back to store", map[string]interface{}{
			"category": name,
			"error":    err.Error(),
		})
	}

	p, err := c.next.GetByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		c.set(ctx, key, missSentinel)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(p); jsonErr == nil {
		c.set(ctx, key, string(encoded))
	}
	return p, nil
}

func (c *CachedStore) List(ctx context.Context) ([]models.CategoryPolicy, error) {
	return c.next.List(ctx)
}

// Upsert writes through to the source and drops the cached entry,
// including a cached miss sentinel for the name.
func (c *CachedStore) Upsert(ctx context.Context, p *models.CategoryPolicy) error {
	if err := c.next.Upsert(ctx, p); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, p.Name); err != nil {
		c.logger.Warn("Policy cache invalidation failed", map[string]interface{}{
			"category": p.Name,
			"error":    err.Error(),
		})
	}
	return nil
}

// Invalidate drops the cached entry for a category, typically after a
// seed refresh.
func (c *CachedStore) Invalidate(ctx context.Context, name string) error {
	return c.client.Del(ctx, cacheKeyPrefix+name).Err()
}

func (c *CachedStore) set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("Policy cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
