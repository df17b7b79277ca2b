package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/henriquesd/dev-store/internal/order/domain"
)

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 5 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, code string) (*domain.Voucher, error) {
	data, err := r.client.Get(ctx, cacheKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var voucher domain.Voucher
	if err := json.Unmarshal(data, &voucher); err != nil {
		return nil, fmt.Errorf("unmarshal voucher failed: %w", err)
	}
	return &voucher, nil
}

func (r *RedisCache) Set(ctx context.Context, voucher *domain.Voucher) error {
	data, err := json.Marshal(voucher)
	if err != nil {
		return fmt.Errorf("marshal voucher failed: %w", err)
	}

	// Jitter spreads expirations of vouchers cached in the same burst.
	ttl := r.baseTTL + time.Duration(rand.Intn(60))*time.Second
	if err := r.client.Set(ctx, cacheKey(voucher.Code), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, code string) error {
	if err := r.client.Del(ctx, cacheKey(code)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(code string) string {
	return fmt.Sprintf("voucher:%s", code)
}
