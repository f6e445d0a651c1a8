package cachestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemCacheStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemCacheStore(10, time.Hour)

	out, err := s.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(out)

	dec := Decision{Classification: "violation", Score: 8.2}
	require.NoError(t, s.Set(ctx, "fp1", dec))

	out, err = s.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(dec, *out)

	require.NoError(t, s.Purge(ctx, "fp1"))
	out, err = s.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(out)
}

func TestMemCacheStoreTTL(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemCacheStore(10, 50*time.Millisecond)
	require.NoError(t, s.Set(ctx, "fp1", Decision{Classification: "allow", Score: 1.0}))

	out, err := s.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.NotNil(out)

	time.Sleep(100 * time.Millisecond)

	out, err = s.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(out)
}

func TestMemCacheStoreCapacityEviction(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemCacheStore(3, time.Hour)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("fp%d", i), Decision{Classification: "allow", Score: float64(i)}))
	}

	// oldest entry evicted once over capacity
	out, err := s.Get(ctx, "fp0")
	require.NoError(t, err)
	assert.Nil(out)

	out, err = s.Get(ctx, "fp3")
	require.NoError(t, err)
	assert.NotNil(out)
}
