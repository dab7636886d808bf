package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value string `json:"value"`
}

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "reports", time.Minute), mr
}

func TestVersionedFetchUsesCacheUntilBump(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Value: "v"}, nil
	}

	key, err := c.BuildKey(ctx, "reports", "pl", "c1")
	require.NoError(t, err)
	assert.Equal(t, "reports:pl:c1:v1", key)

	var out payload
	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "v", out.Value)

	require.NoError(t, c.Bump(ctx))
	key2, err := c.BuildKey(ctx, "reports", "pl", "c1")
	require.NoError(t, err)
	assert.Equal(t, "reports:pl:c1:v2", key2)
	require.NoError(t, c.FetchJSON(ctx, key2, &out, loader))
	assert.Equal(t, 2, calls)
}

func TestVersionedLoaderErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	boom := errors.New("boom")

	var out payload
	err := c.FetchJSON(ctx, "k", &out, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestVersionedNilClientPassesThrough(t *testing.T) {
	c := NewVersioned(nil, "reports", time.Minute)
	ctx := context.Background()

	key, err := c.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a:b", key)

	var out payload
	require.NoError(t, c.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return payload{Value: "direct"}, nil
	}))
	assert.Equal(t, "direct", out.Value)
	require.NoError(t, c.Bump(ctx))
}
