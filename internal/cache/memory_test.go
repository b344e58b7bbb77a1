package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_Roundtrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("gw:", time.Minute)

	_, err := c.Get(ctx, "grants:t1:gen")
	require.True(t, IsMiss(err))

	require.NoError(t, c.Set(ctx, "k", `{"id":"a"}`, 0))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, `{"id":"a"}`, v)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", time.Minute)
	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory_IncrIsReadableAsString(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", time.Second)
	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(ctx, "gen")
		require.NoError(t, err)
		require.Equal(t, want, n)
	}
	v, err := c.Get(ctx, "gen")
	require.NoError(t, err)
	require.Equal(t, "3", v)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "memcached"})
	require.Error(t, err)
}
