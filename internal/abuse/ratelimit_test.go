package abuse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/roofing-leads/pkg/logging"
)

func newTestLimiter(store WindowStore, cfg RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := newFakeClock()
	rl := NewRateLimiter(store, cfg, logging.Default())
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter_RejectsAfterMax(t *testing.T) {
	rl, _ := newTestLimiter(nil, RateLimitConfig{Max: 5, Window: time.Minute})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d := rl.Check(ctx, "203.0.113.7")
		require.True(t, d.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d := rl.Check(ctx, "203.0.113.7")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	other := rl.Check(ctx, "198.51.100.1")
	assert.True(t, other.Allowed, "other clients keep their own window")
}

func TestRateLimiter_FreshWindowAfterExpiry(t *testing.T) {
	rl, clock := newTestLimiter(nil, RateLimitConfig{Max: 2, Window: time.Minute})
	ctx := context.Background()

	rl.Check(ctx, "ip")
	rl.Check(ctx, "ip")
	require.False(t, rl.Check(ctx, "ip").Allowed)

	clock.Advance(time.Minute)
	assert.False(t, rl.Check(ctx, "ip").Allowed, "window is still open at exactly reset time")

	clock.Advance(time.Millisecond)
	d := rl.Check(ctx, "ip")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestRateLimiter_RejectionDoesNotMutate(t *testing.T) {
	store := NewMemoryWindowStore()
	rl, _ := newTestLimiter(store, RateLimitConfig{Max: 1, Window: time.Minute})
	ctx := context.Background()

	rl.Check(ctx, "ip")
	for i := 0; i < 3; i++ {
		rl.Check(ctx, "ip")
	}

	var got Window
	_ = store.Update(ctx, "ip", func(cur Window, _ bool) (Window, bool) {
		got = cur
		return cur, false
	})
	assert.Equal(t, 1, got.Count)
}

func TestRateLimiter_EmptyClientIsUnknown(t *testing.T) {
	rl, _ := newTestLimiter(nil, RateLimitConfig{Max: 1, Window: time.Minute})
	ctx := context.Background()

	require.True(t, rl.Check(ctx, "").Allowed)
	assert.False(t, rl.Check(ctx, "unknown").Allowed)
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(nil, RateLimitConfig{}, nil)
	assert.Equal(t, DefaultRateLimitWindow, rl.Window())
	assert.Equal(t, DefaultRateLimitMax, rl.max)
}

type failingWindowStore struct{}

func (failingWindowStore) Update(context.Context, string, func(Window, bool) (Window, bool)) error {
	return errors.New("connection refused")
}

func TestRateLimiter_StoreErrorFailsOpen(t *testing.T) {
	rl, _ := newTestLimiter(failingWindowStore{}, RateLimitConfig{Max: 1, Window: time.Minute})
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Check(context.Background(), "ip").Allowed)
	}
}

func TestRateLimiter_SweepsExpiredWindows(t *testing.T) {
	store := NewMemoryWindowStore()
	rl, clock := newTestLimiter(store, RateLimitConfig{Max: 5, Window: time.Minute, SweepThreshold: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rl.Check(ctx, fmt.Sprintf("old-%d", i))
	}
	require.Equal(t, 3, store.Len())

	clock.Advance(2 * time.Minute)
	rl.Check(ctx, "new")
	assert.Equal(t, 1, store.Len())
}

func TestRateLimiter_ConcurrentChecksNeverExceedMax(t *testing.T) {
	rl, _ := newTestLimiter(nil, RateLimitConfig{Max: 5, Window: time.Minute})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Check(ctx, "burst").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, allowed)
}
