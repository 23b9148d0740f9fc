package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"restbucks/internal/domain/entities"
	"restbucks/internal/usecase/interfaces"

	"github.com/redis/go-redis/v9"
)

const orderKeyPrefix = "order:"

// OrderRedisCache stores order snapshots as JSON under order:{id}.
type OrderRedisCache struct {
	client redis.Cmdable
}

var _ interfaces.IOrderCache = (*OrderRedisCache)(nil)

func NewOrderRedisCache(client redis.Cmdable) *OrderRedisCache {
	return &OrderRedisCache{client: client}
}

func orderKey(id string) string {
	return orderKeyPrefix + id
}

func (c *OrderRedisCache) Get(ctx context.Context, id string) (entities.Order, bool, error) {
	raw, err := c.client.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entities.Order{}, false, nil
		}
		return entities.Order{}, false, err
	}
	var o entities.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		// A corrupt entry is a miss; the store copy will overwrite it.
		return entities.Order{}, false, nil
	}
	return o, true, nil
}

func (c *OrderRedisCache) Set(ctx context.Context, o entities.Order, ttl time.Duration) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, orderKey(o.ID), raw, ttl).Err()
}

func (c *OrderRedisCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, orderKey(id)).Err()
}

func (c *OrderRedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
