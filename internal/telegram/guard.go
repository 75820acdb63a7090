// internal/telegram/guard.go
package telegram

import (
	"context"
	"fmt"
	"time"

	"subscription-bot/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// callbackGuard absorbs double-clicked admin buttons: the first press within
// the TTL wins, repeats are acknowledged but not dispatched. The guard fails
// open so a Redis outage never blocks admin decisions.
type callbackGuard struct {
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func newCallbackGuard(rdb *redis.Client, ttl time.Duration, log logger.Logger) *callbackGuard {
	return &callbackGuard{redis: rdb, ttl: ttl, logger: log}
}

func (g *callbackGuard) tryAcquire(ctx context.Context, chatID int64, messageID int, data string) bool {
	key := fmt.Sprintf("cb:%d:%d:%s", chatID, messageID, data)
	ok, err := g.redis.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		g.logger.Warn("callback guard unavailable", map[string]interface{}{"error": err.Error()})
		return true
	}
	return ok
}
