package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReminderCache stores reminder flags under
// settlement:reminder:<software>:<agent> with a short TTL.
type RedisReminderCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReminderCache(client *redis.Client, ttl time.Duration) *RedisReminderCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisReminderCache{client: client, ttl: ttl}
}

func reminderKey(software, agentUsername string) string {
	return fmt.Sprintf("settlement:reminder:%s:%s", software, strings.ToLower(agentUsername))
}

func (c *RedisReminderCache) Get(ctx context.Context, software, agentUsername string) (bool, bool, error) {
	val, err := c.client.Get(ctx, reminderKey(software, agentUsername)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, err
	}
	return val == "1", true, nil
}

func (c *RedisReminderCache) Set(ctx context.Context, software, agentUsername string, pending bool) error {
	val := "0"
	if pending {
		val = "1"
	}
	return c.client.Set(ctx, reminderKey(software, agentUsername), val, c.ttl).Err()
}

func (c *RedisReminderCache) Invalidate(ctx context.Context, software, agentUsername string) error {
	return c.client.Del(ctx, reminderKey(software, agentUsername)).Err()
}
