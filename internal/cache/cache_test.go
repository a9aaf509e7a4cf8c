package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string `json:"id"`
	Stock int    `json:"stock"`
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, "test:", time.Minute), mr
}

// ============================================
// LRU Tests
// ============================================

func TestLRU_SetGet(t *testing.T) {
	c := NewLRU(10, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "product:1", item{ID: "1", Stock: 5}))

	var got item
	ok, err := c.Get(ctx, "product:1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, item{ID: "1", Stock: 5}, got)
}

func TestLRU_Miss(t *testing.T) {
	c := NewLRU(10, time.Minute)

	var got item
	ok, err := c.Get(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRU_Expiry(t *testing.T) {
	c := NewLRU(10, 20*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", item{ID: "1"}))

	assert.Eventually(t, func() bool {
		var got item
		ok, _ := c.Get(ctx, "k", &got)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestLRU_BoundedSize(t *testing.T) {
	c := NewLRU(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1))
	require.NoError(t, c.Set(ctx, "b", 2))
	require.NoError(t, c.Set(ctx, "c", 3))

	assert.Equal(t, 2, c.Len())
	var v int
	ok, _ := c.Get(ctx, "a", &v)
	assert.False(t, ok, "oldest entry should be evicted")
}

func TestLRU_DeleteAndPrefix(t *testing.T) {
	c := NewLRU(10, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "product:1", 1))
	require.NoError(t, c.Set(ctx, "product:2", 2))
	require.NoError(t, c.Set(ctx, "products:active", 3))
	require.NoError(t, c.Set(ctx, "discount:SALE", 4))

	require.NoError(t, c.Delete(ctx, "product:1"))
	require.NoError(t, c.DeletePrefix(ctx, "products:"))

	var v int
	ok, _ := c.Get(ctx, "product:1", &v)
	assert.False(t, ok)
	ok, _ = c.Get(ctx, "products:active", &v)
	assert.False(t, ok)
	ok, _ = c.Get(ctx, "product:2", &v)
	assert.True(t, ok)
	ok, _ = c.Get(ctx, "discount:SALE", &v)
	assert.True(t, ok)
}

func TestLRU_ValuesAreCopies(t *testing.T) {
	c := NewLRU(10, time.Minute)
	ctx := context.Background()

	tags := []string{"beef"}
	require.NoError(t, c.Set(ctx, "tags", tags))
	tags[0] = "pork"

	var got []string
	_, err := c.Get(ctx, "tags", &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"beef"}, got)
}

// ============================================
// Redis Tests
// ============================================

func TestRedis_SetGet(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "product:1", item{ID: "1", Stock: 3}))
	assert.True(t, mr.Exists("test:product:1"))

	var got item
	ok, err := c.Get(ctx, "product:1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, got.Stock)
}

func TestRedis_MissAndTTL(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	var got item
	ok, err := c.Get(ctx, "nope", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", item{ID: "x"}))
	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_DeletePrefix(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "products:all", 1))
	require.NoError(t, c.Set(ctx, "products:active", 1))
	require.NoError(t, c.Set(ctx, "product:9", 1))

	require.NoError(t, c.DeletePrefix(ctx, "products:"))

	assert.False(t, mr.Exists("test:products:all"))
	assert.False(t, mr.Exists("test:products:active"))
	assert.True(t, mr.Exists("test:product:9"))

	require.NoError(t, c.Delete(ctx, "product:9"))
	assert.False(t, mr.Exists("test:product:9"))
}
