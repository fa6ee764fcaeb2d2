package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		var loads atomic.Int32
		c, err := New[int, string](4, strconv.Itoa)
		require.NoError(t, err)

		load := func(_ context.Context, k int) (string, error) {
			loads.Add(1)

			return "v" + strconv.Itoa(k), nil
		}

		v, hit, err := c.Get(ctx, 7, load)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "v7", v)

		v, hit, err = c.Get(ctx, 7, load)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, "v7", v)
		assert.Equal(t, int32(1), loads.Load())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		c, err := New[int, string](4, strconv.Itoa)
		require.NoError(t, err)

		boom := errors.New("boom")
		_, _, err = c.Get(ctx, 1, func(context.Context, int) (string, error) { return "", boom })
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, c.Len())

		v, _, err := c.Get(ctx, 1, func(context.Context, int) (string, error) { return "ok", nil })
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c, err := New[int, int](2, strconv.Itoa)
		require.NoError(t, err)

		identity := func(_ context.Context, k int) (int, error) { return k, nil }
		for k := range 3 {
			_, _, err := c.Get(ctx, k, identity)
			require.NoError(t, err)
		}

		assert.Equal(t, 2, c.Len())

		_, hit, err := c.Get(ctx, 0, identity)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("concurrent misses share one load", func(t *testing.T) {
		var loads atomic.Int32
		c, err := New[int, int](4, strconv.Itoa)
		require.NoError(t, err)

		release := make(chan struct{})
		load := func(context.Context, int) (int, error) {
			loads.Add(1)
			<-release

			return 42, nil
		}

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, _, err := c.Get(ctx, 1, load)
				assert.NoError(t, err)
				assert.Equal(t, 42, v)
			}()
		}

		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), loads.Load())
	})
}

func TestCache_RemoveAndPurge(t *testing.T) {
	c, err := New[int, int](4, strconv.Itoa)
	require.NoError(t, err)

	identity := func(_ context.Context, k int) (int, error) { return k, nil }
	for k := range 3 {
		_, _, _ = c.Get(context.Background(), k, identity)
	}

	c.Remove(1)
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}
