package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	redisclient "github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/redis"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redisclient.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, redisclient.NewFromRedis(rdb)
}

func TestRedisAdapter(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	adapter := NewRedisAdapter(client, "mindcare:")

	t.Run("get on missing key is a cache miss", func(t *testing.T) {
		_, err := adapter.Get(ctx, "nope")
		assert.ErrorIs(t, err, providers.ErrCacheMiss)
	})

	t.Run("set then get round trips under the prefix", func(t *testing.T) {
		require.NoError(t, adapter.Set(ctx, "booking_session:s1", []byte(`{"a":1}`), 60))

		got, err := adapter.Get(ctx, "booking_session:s1")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(got))
		assert.True(t, mr.Exists("mindcare:booking_session:s1"))
		assert.Equal(t, 60*time.Second, mr.TTL("mindcare:booking_session:s1"))
	})

	t.Run("non-positive expiration never expires", func(t *testing.T) {
		require.NoError(t, adapter.Set(ctx, "forever", []byte("x"), 0))
		assert.Equal(t, time.Duration(0), mr.TTL("mindcare:forever"))
	})

	t.Run("entries expire", func(t *testing.T) {
		require.NoError(t, adapter.Set(ctx, "short", []byte("x"), 1))
		mr.FastForward(2 * time.Second)
		_, err := adapter.Get(ctx, "short")
		assert.ErrorIs(t, err, providers.ErrCacheMiss)
	})

	t.Run("delete and exists", func(t *testing.T) {
		require.NoError(t, adapter.Set(ctx, "k", []byte("v"), 0))
		ok, err := adapter.Exists(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, adapter.Delete(ctx, "k"))
		ok, err = adapter.Exists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRedisQuotaStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing counter reads as zero", func(t *testing.T) {
		_, client := newTestRedis(t)
		store := NewRedisQuotaStore(client)

		used, err := store.GetUsed(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 0, used)
	})

	t.Run("increments until the limit", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := NewRedisQuotaStore(client)

		for i := 1; i <= 5; i++ {
			used, ok, err := store.IncrementIfBelow(ctx, "user-1", 5)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, i, used)
		}

		used, ok, err := store.IncrementIfBelow(ctx, "user-1", 5)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 5, used)

		v, err := mr.Get("contact_quota:user-1")
		require.NoError(t, err)
		assert.Equal(t, "5", v)
	})

	t.Run("reset sets the counter to zero", func(t *testing.T) {
		_, client := newTestRedis(t)
		store := NewRedisQuotaStore(client)

		_, _, err := store.IncrementIfBelow(ctx, "user-1", 5)
		require.NoError(t, err)
		require.NoError(t, store.Reset(ctx, "user-1"))

		used, err := store.GetUsed(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 0, used)
	})

	t.Run("concurrent increments never exceed the limit", func(t *testing.T) {
		_, client := newTestRedis(t)
		store := NewRedisQuotaStore(client)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			granted int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := store.IncrementIfBelow(ctx, "user-1", 3)
				if err == nil && ok {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 3, granted)
		used, err := store.GetUsed(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 3, used)
	})

	t.Run("store errors surface", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer rdb.Close()
		store := NewRedisQuotaStore(redisclient.NewFromRedis(rdb))
		mr.Close()

		_, _, err = store.IncrementIfBelow(ctx, "user-1", 5)
		assert.Error(t, err)
	})
}
