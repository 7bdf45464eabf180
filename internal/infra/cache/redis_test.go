package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// redisCache connects to the Redis named by the REDIS_* variables under a
// per-test prefix, skipping the test when none is reachable.
func redisCache(t *testing.T) *Cache {
	t.Helper()

	port, err := strconv.Atoi(envOr("REDIS_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	db, err := strconv.Atoi(envOr("REDIS_DB", "0"))
	if err != nil {
		db = 0
	}

	prefix := "chattie-test:" + uuid.NewString() + ":"
	c, err := New(envOr("REDIS_HOST", "localhost"), port, envOr("REDIS_PASSWORD", ""), db, prefix)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() {
		_, _ = c.Purge(context.Background(), "*")
		_ = c.Close()
	})
	return c
}

func TestRedisRoundTrip(t *testing.T) {
	c := redisCache(t)
	ctx := t.Context()

	type profile struct {
		Name string `json:"name"`
	}

	require.NoError(t, c.Set(ctx, "user:u1", profile{Name: "Ada"}, time.Minute))

	var got profile
	require.NoError(t, c.Get(ctx, "user:u1", &got))
	assert.Equal(t, "Ada", got.Name)

	require.NoError(t, c.Delete(ctx, "user:u1"))
	assert.ErrorIs(t, c.Get(ctx, "user:u1", &got), ErrCacheMiss)
}

func TestRedisPurgeMatchesPattern(t *testing.T) {
	c := redisCache(t)
	ctx := t.Context()

	for _, key := range []string{"user:u1", "user:u2", "avatar:a1"} {
		require.NoError(t, c.Set(ctx, key, key, time.Minute))
	}

	n, err := c.Purge(ctx, "user:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var v string
	assert.ErrorIs(t, c.Get(ctx, "user:u1", &v), ErrCacheMiss)
	require.NoError(t, c.Get(ctx, "avatar:a1", &v))
	assert.Equal(t, "avatar:a1", v)

	n, err = c.Purge(ctx, "user:*")
	require.NoError(t, err)
	assert.Zero(t, n)
}
