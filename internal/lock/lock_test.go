package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
)

func lockers(t *testing.T) map[string]Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Locker{
		"memory": NewMemoryLocker(),
		"redis":  NewRedisLocker(client),
	}
}

func TestAcquireRelease(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			g, err := l.Acquire(ctx, "al_signatures_abcdef0.zip", time.Second)
			require.NoError(t, err)
			require.NoError(t, g.Release(ctx))

			g, err = l.Acquire(ctx, "al_signatures_abcdef0.zip", time.Second)
			require.NoError(t, err)
			require.NoError(t, g.Release(ctx))
		})
	}
}

func TestAcquireTimesOut(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			g, err := l.Acquire(ctx, "busy", 5*time.Second)
			require.NoError(t, err)
			defer g.Release(ctx)

			start := time.Now()
			_, err = l.Acquire(ctx, "busy", 200*time.Millisecond)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrLockTimeout)
			assert.Less(t, time.Since(start), 3*time.Second)
		})
	}
}

func TestMutualExclusion(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var inside, maxInside int32
			var wg sync.WaitGroup

			for range 5 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					g, err := l.Acquire(ctx, "shared", 5*time.Second)
					if !assert.NoError(t, err) {
						return
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					assert.NoError(t, g.Release(ctx))
				}()
			}
			wg.Wait()
			assert.EqualValues(t, 1, maxInside)
		})
	}
}

func TestRedisReleaseKeepsForeignToken(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	l := NewRedisLocker(client)

	g, err := l.Acquire(ctx, "x", time.Second)
	require.NoError(t, err)

	// Lease expired and someone else took the name.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(KeyPrefix+"x", "other"))

	require.NoError(t, g.Release(ctx))
	got, err := mr.Get(KeyPrefix + "x")
	require.NoError(t, err)
	assert.Equal(t, "other", got)
}
