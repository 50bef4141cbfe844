package memcache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/statcore/internal/registry"
	"github.com/vk/statcore/modules/memcache"
	"github.com/zclconf/go-cty/cty"
)

func openCache(t *testing.T) (*memcache.Cache, registry.CacheState) {
	t.Helper()
	c := &memcache.Cache{}
	st, err := c.Init(context.Background(), cty.NilVal)
	require.NoError(t, err)
	return c, st
}

func TestProcess_FirstLearnPasses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, st := openCache(t)
	defer func() { require.NoError(t, c.Close(st)) }()

	seen, err := c.Process(ctx, st, "digest-a", true)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestProcess_RepeatedLearnAsSameClassIsSkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, st := openCache(t)
	defer func() { require.NoError(t, c.Close(st)) }()

	seen, err := c.Process(ctx, st, "digest-a", true)
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = c.Process(ctx, st, "digest-a", true)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestProcess_RelearnAsOtherClassPasses(t *testing.T) {
	t.Parallel()
	// Arrange: learned as spam first.
	ctx := context.Background()
	c, st := openCache(t)
	defer func() { require.NoError(t, c.Close(st)) }()
	_, err := c.Process(ctx, st, "digest-a", true)
	require.NoError(t, err)

	// Act & Assert: the correction goes through and becomes the new record.
	seen, err := c.Process(ctx, st, "digest-a", false)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = c.Process(ctx, st, "digest-a", false)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = c.Process(ctx, st, "digest-a", true)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestProcess_DistinctDigestsDoNotInterfere(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, st := openCache(t)
	defer func() { require.NoError(t, c.Close(st)) }()

	_, err := c.Process(ctx, st, "digest-a", true)
	require.NoError(t, err)

	seen, err := c.Process(ctx, st, "digest-b", true)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestInit_StatesAreIsolated(t *testing.T) {
	t.Parallel()
	// Arrange: one Cache instance serving two classifiers.
	ctx := context.Background()
	c := &memcache.Cache{}
	first, err := c.Init(ctx, cty.NilVal)
	require.NoError(t, err)
	second, err := c.Init(ctx, cty.NilVal)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, c.Close(first))
		require.NoError(t, c.Close(second))
	}()

	// Act
	_, err = c.Process(ctx, first, "digest-a", true)
	require.NoError(t, err)

	// Assert: the second classifier's cache has not seen the digest.
	seen, err := c.Process(ctx, second, "digest-a", true)
	require.NoError(t, err)
	assert.False(t, seen)
}
