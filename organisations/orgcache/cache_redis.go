package orgcache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "gateway:orgcache:"

// RedisCache namespaces entries as gateway:orgcache:{orgID}:{key} so a purge
// is a pattern scan over a single organisation's namespace.
type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func cacheKey(orgID, key string) string {
	return fmt.Sprintf("%s%s:%s", cacheKeyPrefix, orgID, key)
}

func (c *RedisCache) Get(ctx context.Context, orgID, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, cacheKey(orgID, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "[RedisCache.Get] redis get")
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, orgID, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, cacheKey(orgID, key), value, ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisCache.Set] redis set")
	}
	return nil
}

func (c *RedisCache) PurgeOrganisation(ctx context.Context, orgID string) error {
	pattern := fmt.Sprintf("%s%s:*", cacheKeyPrefix, orgID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrap(err, "[RedisCache.PurgeOrganisation] redis del")
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "[RedisCache.PurgeOrganisation] redis scan")
	}
	return nil
}
