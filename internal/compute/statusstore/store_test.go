package statusstore

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

var finishTime = time.Date(2022, 10, 1, 12, 0, 0, 0, time.UTC)

func completedStatus() job.Status {
	return job.Status{
		Id:         uuid.New(),
		State:      job.Completed,
		Node:       "node-1",
		Priority:   3,
		CreateTime: finishTime.Add(-2 * time.Second),
		StartTime:  finishTime.Add(-time.Second),
		FinishTime: finishTime,
	}
}

func withRedisStore(t *testing.T, action func(store *RedisStore, db *miniredis.Miniredis)) {
	db, err := miniredis.Run()
	require.NoError(t, err)
	defer db.Close()

	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	defer client.Close()
	action(NewRedisStore(client), db)
}

func TestStores_PutGetListDelete(t *testing.T) {
	tests := map[string]func(t *testing.T, action func(store Store)){
		"memory": func(t *testing.T, action func(store Store)) {
			action(NewMemoryStore(time.Minute))
		},
		"redis": func(t *testing.T, action func(store Store)) {
			withRedisStore(t, func(store *RedisStore, _ *miniredis.Miniredis) { action(store) })
		},
	}
	for name, withStore := range tests {
		t.Run(name, func(t *testing.T) {
			withStore(t, func(store Store) {
				ctx := armadacontext.Background()
				first := completedStatus()
				second := completedStatus()
				second.State = job.Failed

				require.NoError(t, store.Put(ctx, first, time.Minute))
				require.NoError(t, store.Put(ctx, second, time.Minute))

				got, ok, err := store.Get(ctx, first.Id)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, first.Id, got.Id)
				assert.Equal(t, job.Completed, got.State)
				assert.True(t, first.FinishTime.Equal(got.FinishTime))

				all, err := store.List(ctx)
				require.NoError(t, err)
				assert.Len(t, all, 2)

				require.NoError(t, store.Delete(ctx, first.Id))
				_, ok, err = store.Get(ctx, first.Id)
				require.NoError(t, err)
				assert.False(t, ok)

				_, ok, err = store.Get(ctx, uuid.New())
				require.NoError(t, err)
				assert.False(t, ok)

				require.NoError(t, store.Put(ctx, second, 0))
				_, ok, err = store.Get(ctx, second.Id)
				require.NoError(t, err)
				assert.False(t, ok)
			})
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	ctx := armadacontext.Background()
	status := completedStatus()
	require.NoError(t, store.Put(ctx, status, 50*time.Millisecond))

	_, ok, err := store.Get(ctx, status.Id)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, _ := store.Get(ctx, status.Id)
		all, _ := store.List(ctx)
		return !ok && len(all) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRedisStore_Expiry(t *testing.T) {
	withRedisStore(t, func(store *RedisStore, db *miniredis.Miniredis) {
		ctx := armadacontext.Background()
		status := completedStatus()
		require.NoError(t, store.Put(ctx, status, 5*time.Second))

		db.FastForward(4 * time.Second)
		_, ok, err := store.Get(ctx, status.Id)
		require.NoError(t, err)
		assert.True(t, ok)

		db.FastForward(2 * time.Second)
		_, ok, err = store.Get(ctx, status.Id)
		require.NoError(t, err)
		assert.False(t, ok)

		all, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
