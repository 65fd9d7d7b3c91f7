package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lojafacil/backend/internal/domain"
)

func TestNoopProfileCacheAlwaysMisses(t *testing.T) {
	var c ProfileCache = NoopProfileCache{}
	require.NoError(t, c.Set(context.Background(), &domain.UserProfile{ID: "usr_1"}, time.Minute))

	got, ok, err := c.Get(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRedisProfileCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("LOJAFACIL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set LOJAFACIL_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisProfileCache(addr, os.Getenv("LOJAFACIL_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	id := "usr_it_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { _ = c.Delete(ctx, id) })

	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	profile := &domain.UserProfile{ID: id, CompanyName: "Loja", ResponsibleName: "Ana", Email: fmt.Sprintf("%s@example.com", id)}
	require.NoError(t, c.Set(ctx, profile, time.Minute))

	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *profile, *got)

	require.NoError(t, c.Delete(ctx, id))
	_, ok, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}
