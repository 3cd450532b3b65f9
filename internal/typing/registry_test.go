package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Globidev/globibot-rs/internal/wire"
)

func TestStopBeforeExpiryPreventsExpireCallback(t *testing.T) {
	r := New()

	var expiredCount int
	var mu sync.Mutex
	key := r.Start(func(wire.TypingKey) {
		mu.Lock()
		expiredCount++
		mu.Unlock()
	})

	require.True(t, r.Active(key))
	require.True(t, r.Stop(key))
	require.False(t, r.Active(key))

	// Double stop is safe and reports false, never panics.
	assert.False(t, r.Stop(key))

	time.Sleep(Expiry + 200*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, expiredCount, "stopped session must not fire its expiry callback")
}

func TestSlotReuseProducesDistinctGeneration(t *testing.T) {
	r := New()

	first := r.Start(func(wire.TypingKey) {})
	require.True(t, r.Stop(first))

	second := r.Start(func(wire.TypingKey) {})
	assert.Equal(t, first.Index, second.Index, "freed slot should be reused")
	assert.NotEqual(t, first.Generation, second.Generation, "reused slot must carry a new generation")

	// The old key must not resolve to the new session.
	assert.False(t, r.Active(first))
	assert.True(t, r.Active(second))
}

func TestExpiryFiresAfterEightSeconds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long expiry test in -short mode")
	}

	r := New()
	expired := make(chan wire.TypingKey, 1)
	key := r.Start(func(k wire.TypingKey) { expired <- k })

	select {
	case got := <-expired:
		assert.Equal(t, key, got)
	case <-time.After(Expiry + 2*time.Second):
		t.Fatal("expiry callback never fired")
	}

	assert.False(t, r.Active(key))
}

func TestDoubleRemoveSafeOnConcurrentStops(t *testing.T) {
	r := New()
	key := r.Start(func(wire.TypingKey) {})

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Stop(key)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, ok := range results {
		if ok {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent Stop should win")
}
