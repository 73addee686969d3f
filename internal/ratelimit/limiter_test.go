package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLimiter_Allow(t *testing.T) {
	tests := []struct {
		name  string
		limit int
	}{
		{name: "limit_1", limit: 1},
		{name: "limit_3", limit: 3},
		{name: "limit_30", limit: 30},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			clock := newClock()
			l := New(map[Class]Rule{ClassBid: {Limit: tc.limit, Window: time.Minute}}, clock.Now)

			for i := 0; i < tc.limit; i++ {
				d := l.Allow("u1", ClassBid)
				require.True(t, d.Allowed, "action %d should be allowed", i+1)
				require.Equal(t, tc.limit-i-1, d.Remaining)
			}

			clock.Advance(30 * time.Second)
			d := l.Allow("u1", ClassBid)
			require.False(t, d.Allowed, "action N+1 within the window is rejected")
			require.Equal(t, 30*time.Second, d.RetryAfter)

			// rejection has no side effect on the counter
			c, ok := l.Peek("u1", ClassBid)
			require.True(t, ok)
			require.Equal(t, tc.limit, c.Count)

			clock.Advance(30 * time.Second)
			require.True(t, l.Allow("u1", ClassBid).Allowed, "counter resets after the window")
		})
	}
}

func TestLimiter_ClassesAndIdentitiesAreIndependent(t *testing.T) {
	clock := newClock()
	l := New(map[Class]Rule{
		ClassJoin:  {Limit: 1, Window: time.Minute},
		ClassEvent: {Limit: 2, Window: time.Minute},
	}, clock.Now)

	require.True(t, l.Allow("u1", ClassJoin).Allowed)
	require.False(t, l.Allow("u1", ClassJoin).Allowed)
	require.True(t, l.Allow("u2", ClassJoin).Allowed)
	require.True(t, l.Allow("u1", ClassEvent).Allowed)

	// no rule configured means unlimited
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("u1", ClassBid).Allowed)
	}
}

func TestLimiter_Sweep(t *testing.T) {
	clock := newClock()
	l := New(map[Class]Rule{
		ClassJoin: {Limit: 5, Window: time.Minute},
		ClassBid:  {Limit: 5, Window: 10 * time.Minute},
	}, clock.Now)

	for i := 0; i < 4; i++ {
		l.Allow(fmt.Sprintf("u%d", i), ClassJoin)
	}
	l.Allow("u0", ClassBid)
	require.Equal(t, Stats{Counters: 5, Identities: 4}, l.Stats())

	require.Zero(t, l.Sweep(clock.Now()))

	clock.Advance(time.Minute)
	require.Equal(t, 4, l.Sweep(clock.Now()))
	require.Equal(t, Stats{Counters: 1, Identities: 1}, l.Stats())
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(map[Class]Rule{ClassEvent: {Limit: 100, Window: time.Hour}}, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 250; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("u1", ClassEvent).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 100, allowed)
}

func TestHandshakeLimiter(t *testing.T) {
	clock := newClock()
	h := NewHandshakeLimiter(1, 2, clock.Now)

	require.True(t, h.Allow("10.0.0.1"))
	require.True(t, h.Allow("10.0.0.1"))
	require.False(t, h.Allow("10.0.0.1"), "burst exhausted")
	require.True(t, h.Allow("10.0.0.2"), "other IPs have their own bucket")

	clock.Advance(time.Second)
	require.True(t, h.Allow("10.0.0.1"), "one token refilled")

	require.Equal(t, 2, h.Tracked())
	clock.Advance(10 * time.Minute)
	require.Equal(t, 2, h.Sweep(clock.Now(), 5*time.Minute))
	require.Zero(t, h.Tracked())
}
