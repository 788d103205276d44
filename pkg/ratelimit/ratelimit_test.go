package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tb := newTokenBucket(3, 2, clock.now)

	for i := 0; i < 3; i++ {
		require.True(t, tb.Allow(), "burst %d", i)
	}
	assert.False(t, tb.Allow())
	assert.Equal(t, 500*time.Millisecond, tb.retryAfter())

	clock.advance(250 * time.Millisecond)
	assert.False(t, tb.Allow(), "half a token")
	clock.advance(250 * time.Millisecond)
	assert.True(t, tb.Allow())

	clock.advance(time.Hour)
	assert.Equal(t, 3, tb.GetRemaining(), "capped at capacity")
}

func TestTokenBucket_WaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 0.001)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestKeyed_PerKeyAndPrune(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	k := NewKeyed(1, 1)
	k.now = clock.now

	ok, _ := k.Allow("a")
	require.True(t, ok)
	ok, retry := k.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, retry)

	ok, _ = k.Allow("b")
	assert.True(t, ok, "keys are independent")

	assert.Equal(t, 2, k.Prune())
	clock.advance(2 * time.Second)
	assert.Equal(t, 0, k.Prune())
}
