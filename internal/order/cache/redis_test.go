package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henriquesd/dev-store/internal/order/domain"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client), mr
}

func testVoucher() *domain.Voucher {
	return &domain.Voucher{
		Code:          "SAVE10",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: 10,
		RemainingUses: 1,
		Active:        true,
		ExpiresAt:     time.Now().Add(time.Hour).UTC(),
	}
}

func TestGet_Hit(t *testing.T) {
	cache, mr := setupTestRedis(t)
	voucher := testVoucher()

	data, err := json.Marshal(voucher)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(voucher.Code), string(data)))

	got, err := cache.Get(context.Background(), voucher.Code)
	require.NoError(t, err)
	assert.Equal(t, voucher.Code, got.Code)
	assert.Equal(t, voucher.DiscountValue, got.DiscountValue)
}

func TestGet_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	got, err := cache.Get(context.Background(), "MISSING")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestGet_CorruptEntry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("BROKEN"), "{not json"))

	_, err := cache.Get(context.Background(), "BROKEN")
	assert.ErrorContains(t, err, "unmarshal voucher failed")
}

func TestSet_ThenGetRoundTrip(t *testing.T) {
	cache, mr := setupTestRedis(t)
	voucher := testVoucher()

	require.NoError(t, cache.Set(context.Background(), voucher))
	assert.True(t, mr.Exists(cacheKey(voucher.Code)))

	got, err := cache.Get(context.Background(), voucher.Code)
	require.NoError(t, err)
	assert.Equal(t, voucher.Code, got.Code)
}

func TestInvalidate_RemovesEntry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	voucher := testVoucher()

	require.NoError(t, cache.Set(context.Background(), voucher))
	require.NoError(t, cache.Invalidate(context.Background(), voucher.Code))

	assert.False(t, mr.Exists(cacheKey(voucher.Code)))
}
