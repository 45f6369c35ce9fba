package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		burst    int
		calls    int
		wantPass int
	}{
		{name: "within burst", burst: 3, calls: 3, wantPass: 3},
		{name: "beyond burst", burst: 2, calls: 5, wantPass: 2},
		{name: "single token", burst: 1, calls: 4, wantPass: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(1, tt.burst, 0)
			defer rl.Stop()

			passed := 0
			for range tt.calls {
				if rl.Allow("user:u1") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := New(1, 1, 0)
	defer rl.Stop()

	require.True(t, rl.Allow("push:token-a"))
	assert.False(t, rl.Allow("push:token-a"))
	assert.True(t, rl.Allow("push:token-b"), "another channel has its own bucket")
	assert.Equal(t, 2, rl.Len())
}

func TestKeyedRateLimiter_WaitPacesSends(t *testing.T) {
	rl := New(20, 1, 0)
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, rl.Wait(ctx, "push:token-a"))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "push:token-a"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestKeyedRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := New(0.1, 1, 0)
	defer rl.Stop()
	rl.Allow("push:token-a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, rl.Wait(ctx, "push:token-a"))
}

func TestKeyedRateLimiter_EvictsIdleKeys(t *testing.T) {
	rl := New(1, 1, 0)
	rl.idleTTL = time.Minute

	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	rl.Allow("ip:10.0.0.1")
	clock = clock.Add(45 * time.Second)
	rl.Allow("ip:10.0.0.2")
	clock = clock.Add(30 * time.Second)

	assert.Equal(t, 1, rl.evictIdle())
	assert.Equal(t, 1, rl.Len())
	assert.True(t, rl.Allow("ip:10.0.0.1"), "an evicted key starts with a full bucket")
}

func TestKeyedRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := New(1, 1, time.Millisecond)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
