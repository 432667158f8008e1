package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMiniredis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb, zap.NewNop()), mr
}

func TestBlacklistToken(t *testing.T) {
	c, mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, c.BlacklistToken(ctx, "jti-1", time.Minute))

	ok, err := c.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsBlacklisted(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = c.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok, "TTL 过后应自动移出黑名单")
}

func TestBlacklistToken_ExpiredTokenSkipped(t *testing.T) {
	c, mr := setupMiniredis(t)

	require.NoError(t, c.BlacklistToken(context.Background(), "jti-old", 0))
	assert.False(t, mr.Exists(blacklistPrefix+"jti-old"))
}

func TestCheckRateLimit(t *testing.T) {
	c, _ := setupMiniredis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := c.CheckRateLimit(ctx, "rate_limit:test", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "第 %d 次请求应放行", i+1)
	}

	allowed, err := c.CheckRateLimit(ctx, "rate_limit:test", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "超过限额应拒绝")

	allowed, err = c.CheckRateLimit(ctx, "rate_limit:other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "不同 key 互不影响")
}

func TestOccupiedSlotsCache(t *testing.T) {
	c, mr := setupMiniredis(t)
	ctx := context.Background()

	_, found, err := c.GetOccupiedSlots(ctx, "2025-06-01")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetOccupiedSlots(ctx, "2025-06-01", []string{"09:00", "10:30"}, time.Minute))

	slots, found, err := c.GetOccupiedSlots(ctx, "2025-06-01")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"09:00", "10:30"}, slots)

	require.NoError(t, c.InvalidateOccupiedSlots(ctx, "2025-06-01"))
	_, found, err = c.GetOccupiedSlots(ctx, "2025-06-01")
	require.NoError(t, err)
	assert.False(t, found)

	// 空列表也是有效缓存
	require.NoError(t, c.SetOccupiedSlots(ctx, "2025-06-02", nil, time.Minute))
	slots, found, err = c.GetOccupiedSlots(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, slots)

	// 损坏的缓存视为未命中
	require.NoError(t, mr.Set(occupiedSlotsPrefix+"2025-06-03", "not-json"))
	_, found, err = c.GetOccupiedSlots(ctx, "2025-06-03")
	require.NoError(t, err)
	assert.False(t, found)
}
