package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sigdesk/internal/lock"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
	storeredis "github.com/MrSnakeDoc/sigdesk/internal/store/redis"
)

type flakyStore struct {
	Store
	failGets int32
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if atomic.AddInt32(&f.failGets, -1) >= 0 {
		return nil, false, errors.New("connection reset")
	}
	return f.Store.Get(ctx, key)
}

func TestGuardedSingleComputation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	setups := map[string]func() (Store, lock.Locker){
		"memory": func() (Store, lock.Locker) {
			return NewLocal(16, time.Hour), lock.NewMemoryLocker()
		},
		"redis": func() (Store, lock.Locker) {
			return storeredis.NewBlobCache(client, "al_ui.signature"), lock.NewRedisLocker(client)
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			store, locker := setup()
			g := NewGuarded(store, locker, 5*time.Second, logger.NewNop())

			var computed int32
			compute := func(context.Context) ([]byte, error) {
				atomic.AddInt32(&computed, 1)
				time.Sleep(50 * time.Millisecond)
				return []byte("bundle-" + name), nil
			}

			const callers = 10
			results := make([][]byte, callers)
			var wg sync.WaitGroup
			for i := range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					blob, err := g.GetOrCompute(context.Background(), "fp", "al_signatures_fp.zip", time.Hour, compute)
					assert.NoError(t, err)
					results[i] = blob
				}()
			}
			wg.Wait()

			assert.EqualValues(t, 1, computed)
			for _, r := range results {
				assert.True(t, bytes.Equal(results[0], r))
			}
		})
	}
}

func TestGuardedReadErrorIsMiss(t *testing.T) {
	store := &flakyStore{Store: NewLocal(4, time.Hour), failGets: 2}
	g := NewGuarded(store, lock.NewMemoryLocker(), time.Second, logger.NewNop())

	blob, err := g.GetOrCompute(context.Background(), "k", "l", time.Hour, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), blob)

	cached, ok, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("fresh"), cached)
}

func TestGuardedComputeErrorNotCached(t *testing.T) {
	store := NewLocal(4, time.Hour)
	g := NewGuarded(store, lock.NewMemoryLocker(), time.Second, logger.NewNop())

	_, err := g.GetOrCompute(context.Background(), "k", "l", time.Hour, func(context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	_, ok, _ := store.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestLayeredFillsLocal(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	shared := storeredis.NewBlobCache(client, "al_ui.signature")
	require.NoError(t, shared.Save(ctx, "k", []byte("v"), time.Hour))

	local := NewLocal(4, time.Hour)
	layered := NewLayered(local, shared, logger.NewNop())

	blob, ok, err := layered.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), blob)

	mr.FlushAll()
	blob, ok, err = layered.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "served from the local tier")
	assert.Equal(t, []byte("v"), blob)

	require.NoError(t, layered.Save(ctx, "n", []byte("w"), time.Hour))
	_, ok, _ = shared.Get(ctx, "n")
	assert.True(t, ok)
}
