package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_SetGet(t *testing.T) {
	l := NewLRU(10)
	l.Set("a", "1", time.Minute)

	v, ok := l.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = l.Get("b")
	assert.False(t, ok)
}

func TestLRU_Bound(t *testing.T) {
	l := NewLRU(1000)
	for i := 0; i < 1001; i++ {
		l.Set(fmt.Sprintf("k%d", i), "v", time.Minute)
	}

	assert.Equal(t, 1000, l.Len())

	// k0 was the least recently used and must be evicted.
	_, ok := l.Get("k0")
	assert.False(t, ok)

	_, ok = l.Get("k1000")
	assert.True(t, ok)
}

func TestLRU_AccessRefreshesRecency(t *testing.T) {
	l := NewLRU(2)
	l.Set("a", "1", time.Minute)
	l.Set("b", "2", time.Minute)

	// Touch a so that b becomes the eviction candidate.
	_, ok := l.Get("a")
	require.True(t, ok)

	l.Set("c", "3", time.Minute)

	_, ok = l.Get("b")
	assert.False(t, ok)
	_, ok = l.Get("a")
	assert.True(t, ok)
}

func TestLRU_TTLExpiry(t *testing.T) {
	l := NewLRU(10)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Set("a", "1", 100*time.Millisecond)

	_, ok := l.Get("a")
	require.True(t, ok)

	now = now.Add(200 * time.Millisecond)
	_, ok = l.Get("a")
	assert.False(t, ok)
}

func TestLRU_DeletePrefix(t *testing.T) {
	l := NewLRU(10)
	l.Set("sessions:u1:v1:x", "1", time.Minute)
	l.Set("sessions:u1:v1:y", "2", time.Minute)
	l.Set("sessions:u2:v1:z", "3", time.Minute)

	removed := l.DeletePrefix("sessions:u1:")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, l.Len())
}
