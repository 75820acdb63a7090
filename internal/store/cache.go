// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"subscription-bot/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// CachedStore decorates a Store with a short-TTL Redis copy of per-user rows
// for the read-heavy /mysub path. Every mutation drops the cached copy, so a
// cache entry can only ever be a recent read, never a stale write.
type CachedStore struct {
	inner  Store
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStore(inner Store, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedStore {
	return &CachedStore{
		inner:  inner,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "store-cache"}),
	}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("sub:%d", userID)
}

func (c *CachedStore) GetByUser(ctx context.Context, userID int64) (*Subscription, error) {
	key := cacheKey(userID)
	if val, err := c.redis.Get(ctx, key).Result(); err == nil {
		var sub Subscription
		if err := json.Unmarshal([]byte(val), &sub); err == nil {
			return &sub, nil
		}
	}

	sub, err := c.inner.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(sub); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("cache write failed", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}
	return sub, nil
}

func (c *CachedStore) GetByTransaction(ctx context.Context, ref string) (*Subscription, error) {
	return c.inner.GetByTransaction(ctx, ref)
}

func (c *CachedStore) UpsertPending(ctx context.Context, userID int64, displayName, handle, ref string, now time.Time) error {
	if err := c.inner.UpsertPending(ctx, userID, displayName, handle, ref, now); err != nil {
		return err
	}
	c.invalidate(ctx, userID)
	return nil
}

func (c *CachedStore) Activate(ctx context.Context, userID int64, startAt, expireAt time.Time) error {
	if err := c.inner.Activate(ctx, userID, startAt, expireAt); err != nil {
		return err
	}
	c.invalidate(ctx, userID)
	return nil
}

func (c *CachedStore) MarkExpired(ctx context.Context, userID int64) error {
	if err := c.inner.MarkExpired(ctx, userID); err != nil {
		return err
	}
	c.invalidate(ctx, userID)
	return nil
}

func (c *CachedStore) MarkRejected(ctx context.Context, userID int64) error {
	if err := c.inner.MarkRejected(ctx, userID); err != nil {
		return err
	}
	c.invalidate(ctx, userID)
	return nil
}

func (c *CachedStore) SetReminder(ctx context.Context, userID int64, r Reminder) error {
	if err := c.inner.SetReminder(ctx, userID, r); err != nil {
		return err
	}
	c.invalidate(ctx, userID)
	return nil
}

func (c *CachedStore) ListActive(ctx context.Context) ([]ActiveRow, error) {
	return c.inner.ListActive(ctx)
}

func (c *CachedStore) invalidate(ctx context.Context, userID int64) {
	if err := c.redis.Del(ctx, cacheKey(userID)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}
