package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQuotaStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryQuotaStore()

	used, err := store.GetUsed(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, used)

	store.Seed("user-1", 4)
	used, ok, err := store.IncrementIfBelow(ctx, "user-1", 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, used)

	used, ok, err = store.IncrementIfBelow(ctx, "user-1", 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 5, used)

	// counters are per user
	used, ok, err = store.IncrementIfBelow(ctx, "user-2", 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, used)

	require.NoError(t, store.Reset(ctx, "user-1"))
	used, err = store.GetUsed(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}
