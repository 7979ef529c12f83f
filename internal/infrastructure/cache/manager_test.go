package cache

import (
	"context"
	"testing"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, maxSize int, ttl time.Duration) *Manager {
	t.Helper()
	m := NewManager(&config.CacheConfig{
		Enabled:         true,
		MaxSize:         maxSize,
		TTL:             ttl,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerGetSet(t *testing.T) {
	m := newTestManager(t, 10, time.Minute)
	ctx := context.Background()

	key := Key("video", []byte("video-bytes"))
	_, err := m.Get(ctx, key)
	assert.ErrorIs(t, err, common.ErrCacheMiss)

	require.NoError(t, m.Set(ctx, key, `{"name":"煎餃"}`))

	value, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"煎餃"}`, value)
}

func TestManagerKeySeparatesKinds(t *testing.T) {
	payload := []byte("same-bytes")
	assert.NotEqual(t, Key("video", payload), Key("image", payload))
	assert.Equal(t, Key("video", payload), Key("video", []byte("same-bytes")))
}

func TestManagerExpiry(t *testing.T) {
	m := newTestManager(t, 10, 10*time.Millisecond)
	ctx := context.Background()

	key := Key("text", []byte("pdf-bytes"))
	require.NoError(t, m.Set(ctx, key, "result"))

	time.Sleep(20 * time.Millisecond)
	_, err := m.Get(ctx, key)
	assert.ErrorIs(t, err, common.ErrCacheMiss)
}

func TestManagerEvictsLRUWhenFull(t *testing.T) {
	m := newTestManager(t, 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1"))
	require.NoError(t, m.Set(ctx, "b", "2"))

	// 存取 a，讓 b 成為最少使用的條目
	_, err := m.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "c", "3"))

	_, err = m.Get(ctx, "b")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestDisabledStore(t *testing.T) {
	store, err := New(&config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "key")
	assert.ErrorIs(t, err, common.ErrCacheDisabled)
	assert.NoError(t, store.Set(context.Background(), "key", "value"))
	assert.Equal(t, false, store.Stats()["enabled"])
}
