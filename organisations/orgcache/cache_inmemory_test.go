package orgcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platformedge/gateway/organisations/orgcache"
)

func TestInMemoryCacheSetAndGet(t *testing.T) {
	cache := orgcache.NewInMemoryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "org-alpha", "dashboard:market-edge", []byte(`{"rows":1}`), time.Minute))

	value, found, err := cache.Get(ctx, "org-alpha", "dashboard:market-edge")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte(`{"rows":1}`), value)

	_, found, err = cache.Get(ctx, "org-alpha", "dashboard:causal-edge")
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = cache.Get(ctx, "org-beta", "dashboard:market-edge")
	require.NoError(t, err)
	require.False(t, found)
}

func TestInMemoryCacheEntryExpires(t *testing.T) {
	cache := orgcache.NewInMemoryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "org-alpha", "dashboard:market-edge", []byte(`{}`), time.Nanosecond))
	time.Sleep(time.Millisecond)

	_, found, err := cache.Get(ctx, "org-alpha", "dashboard:market-edge")
	require.NoError(t, err)
	require.False(t, found)
}

func TestInMemoryCachePurgeOrganisationIsScoped(t *testing.T) {
	cache := orgcache.NewInMemoryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "org-alpha", "dashboard:market-edge", []byte(`{"a":1}`), time.Minute))
	require.NoError(t, cache.Set(ctx, "org-alpha", "dashboard:causal-edge", []byte(`{"b":2}`), time.Minute))
	require.NoError(t, cache.Set(ctx, "org-beta", "dashboard:market-edge", []byte(`{"c":3}`), time.Minute))

	require.NoError(t, cache.PurgeOrganisation(ctx, "org-alpha"))

	_, found, err := cache.Get(ctx, "org-alpha", "dashboard:market-edge")
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = cache.Get(ctx, "org-alpha", "dashboard:causal-edge")
	require.NoError(t, err)
	require.False(t, found)

	// Other organisations are untouched.
	value, found, err := cache.Get(ctx, "org-beta", "dashboard:market-edge")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte(`{"c":3}`), value)
}
