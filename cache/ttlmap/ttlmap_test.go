package ttlmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetPut(t *testing.T) {
	c := New[string](time.Minute)

	_, ok := c.Get("missing")
	require.False(t, ok)

	c.Put("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestExpiry(t *testing.T) {
	c := New[int](10 * time.Second)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	c.Put("height", 30587)

	now = now.Add(9 * time.Second)
	_, ok := c.Get("height")
	require.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("height")
	require.False(t, ok, "entry at exactly the TTL boundary is absent")
	require.Equal(t, 0, c.Len(), "expired entry is evicted on access")
}

func TestClear(t *testing.T) {
	c := New[int](time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)
	require.Equal(t, 2, c.Len())

	c.Clear()
	require.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestDefaultTTL(t *testing.T) {
	c := New[int](0)
	require.Equal(t, DefaultTTL, c.ttl)
}
