package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := New[int](50 * time.Millisecond)
	defer c.Close()

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestTTLCacheMissReportsStats(t *testing.T) {
	c := New[int](50 * time.Millisecond)
	defer c.Close()

	_, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.StatsSnapshot().Misses)
}

func TestTTLCacheExpiresEntries(t *testing.T) {
	c := New[string](20 * time.Millisecond)
	defer c.Close()

	c.Set("k", "v")
	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTLCacheDelete(t *testing.T) {
	c := New[string](time.Second)
	defer c.Close()

	c.Set("k", "v")
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}
