package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_BurstThenDeny(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(Policy{Max: 3, Window: time.Minute})
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ip:t1")
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d", i)
		require.Equal(t, int64(2-i), res.Remaining)
	}
	res, err := l.Allow(ctx, "ip:t1")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 20*time.Second, res.RetryAfter)

	// otra key tiene su propio bucket
	res, _ = l.Allow(ctx, "ip:t2")
	require.True(t, res.Allowed)

	// después de recargar un token vuelve a pasar
	now = now.Add(20 * time.Second)
	res, _ = l.Allow(ctx, "ip:t1")
	require.True(t, res.Allowed)
}

func TestMemoryLimiter_EvictsIdleKeys(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(Policy{Max: 1, Window: time.Second})
	l.now = func() time.Time { return now }

	_, _ = l.Allow(context.Background(), "a")
	now = now.Add(5 * time.Second)
	_, _ = l.Allow(context.Background(), "b")
	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotContains(t, l.limiters, "a")
	require.Contains(t, l.limiters, "b")
}

func TestPool_ReusesPerPolicy(t *testing.T) {
	built := 0
	p := NewPool(func(pol Policy) Limiter {
		built++
		return NewMemoryLimiter(pol)
	})
	a := p.For(Policy{Max: 5, Window: time.Minute})
	b := p.For(Policy{Max: 5, Window: time.Minute})
	c := p.For(Policy{Max: 10, Window: time.Minute})
	require.Same(t, a, b)
	require.NotSame(t, a, c)
	require.Equal(t, 2, built)
}
