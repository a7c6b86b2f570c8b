package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printworks/platform/internal/cache"
)

func TestNoopAlwaysMisses(t *testing.T) {
	var c cache.Cache = cache.Noop{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))

	var out map[string]int
	hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, out)
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := cache.NewRedis(context.Background(), "http://not-redis", "test:")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}
