package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(policy Policy) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(map[string]Policy{ActionSendMessage: policy})
	rl.now = clock.Now
	return rl, clock
}

func TestAllowConsumesBurstThenRefills(t *testing.T) {
	rl, clock := newTestLimiter(PerMinute(6, 2))

	ok, _ := rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)

	ok, retryAfter := rl.Allow("u1", ActionSendMessage)
	assert.False(t, ok)
	assert.InDelta(t, 10*time.Second, retryAfter, float64(time.Millisecond))

	// A rejected attempt does not push the next token further out.
	ok, retryAfter = rl.Allow("u1", ActionSendMessage)
	assert.False(t, ok)
	assert.InDelta(t, 10*time.Second, retryAfter, float64(time.Millisecond))

	clock.Advance(10 * time.Second)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
}

func TestAllowKeepsUsersAndActionsApart(t *testing.T) {
	rl, _ := newTestLimiter(PerMinute(1, 1))

	ok, _ := rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.False(t, ok)

	ok, _ = rl.Allow("u2", ActionSendMessage)
	assert.True(t, ok)

	// Unknown actions fall back to the default policy.
	ok, _ = rl.Allow("u1", ActionRead)
	assert.True(t, ok)
}

func TestCleanupDropsIdleBuckets(t *testing.T) {
	rl, clock := newTestLimiter(PerMinute(1, 1))

	rl.Allow("u1", ActionSendMessage)
	clock.Advance(30 * time.Minute)
	rl.Allow("u2", ActionSendMessage)
	clock.Advance(45 * time.Minute)

	rl.Cleanup(time.Hour)

	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	assert.NotContains(t, rl.buckets, "u1:"+ActionSendMessage)
	assert.Contains(t, rl.buckets, "u2:"+ActionSendMessage)
}
