package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"templateshop/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// 確定済み注文だけを入れる。注文は作られた後intentとの対応が変わらない
type RedisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisOrderCache(client *redis.Client, ttl time.Duration) *RedisOrderCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisOrderCache{client: client, ttl: ttl}
}

func (c *RedisOrderCache) Get(ctx context.Context, intentID string) (model.OrderWithItems, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(intentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.OrderWithItems{}, false, nil
	}
	if err != nil {
		return model.OrderWithItems{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var o model.OrderWithItems
	if err := json.Unmarshal(data, &o); err != nil {
		return model.OrderWithItems{}, false, fmt.Errorf("unmarshal order failed: %w", err)
	}
	return o, true, nil
}

func (c *RedisOrderCache) Set(ctx context.Context, o model.OrderWithItems) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order failed: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(o.Order.PaymentIntentID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// 状態変更（キャンセル等）の後に呼ぶ
func (c *RedisOrderCache) Delete(ctx context.Context, intentID string) error {
	if err := c.client.Del(ctx, cacheKey(intentID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(intentID string) string {
	return "order:intent:" + intentID
}

// Redis未設定時
type NoopOrderCache struct{}

func (NoopOrderCache) Get(context.Context, string) (model.OrderWithItems, bool, error) {
	return model.OrderWithItems{}, false, nil
}
func (NoopOrderCache) Set(context.Context, model.OrderWithItems) error { return nil }
func (NoopOrderCache) Delete(context.Context, string) error            { return nil }
