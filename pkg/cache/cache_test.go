package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(Options{DefaultExpiration: time.Minute})
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Count(), "expired items linger until swept")

	var evicted []string
	c.SetOnEvicted(func(k string, _ any) { evicted = append(evicted, k) })
	c.DeleteExpired()
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, []string{"k"}, evicted)
}

func TestCacheEvictsSoonestToExpire(t *testing.T) {
	c := New(Options{MaxItems: 2})

	c.SetWithExpiration("short", 1, time.Minute)
	c.SetWithExpiration("long", 2, time.Hour)
	c.SetWithExpiration("new", 3, time.Hour)

	assert.Equal(t, 2, c.Count())
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("long")
	assert.True(t, ok)

	// overwriting an existing key never evicts
	c.SetWithExpiration("long", 4, time.Hour)
	assert.Equal(t, 2, c.Count())
}

func TestCacheRunStopsWithContext(t *testing.T) {
	c := New(Options{CleanupInterval: time.Millisecond})
	c.SetWithExpiration("k", 1, time.Nanosecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, func() bool { return c.Count() == 0 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
