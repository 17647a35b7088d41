package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestCacheSeenDuplicate(t *testing.T) {
	cache := NewCache(10, time.Minute)
	require.False(t, cache.IsSeen("2101.00001"))
	cache.MarkSeen("2101.00001")
	require.True(t, cache.IsSeen("2101.00001"))
	require.Equal(t, 1, cache.Len())
}

func TestCacheTTLExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := newCache(10, time.Minute, clock.now)

	cache.MarkSeen("a")
	clock.t = clock.t.Add(59 * time.Second)
	require.True(t, cache.IsSeen("a"))

	clock.t = clock.t.Add(2 * time.Second)
	require.False(t, cache.IsSeen("a"))

	cache.MarkSeen("b")
	require.Equal(t, 1, cache.Len())
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache := NewCache(1, time.Minute)
	cache.MarkSeen("first")
	cache.MarkSeen("second")

	require.False(t, cache.IsSeen("first"))
	require.True(t, cache.IsSeen("second"))
}

func TestCacheRemarkKeepsNewestTimestamp(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := newCache(10, time.Minute, clock.now)

	cache.MarkSeen("a")
	clock.t = clock.t.Add(50 * time.Second)
	cache.MarkSeen("a")
	clock.t = clock.t.Add(30 * time.Second)
	cache.MarkSeen("b")

	require.True(t, cache.IsSeen("a"))
}
