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

type profile struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func newStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewStore(rdb)
}

func TestStore_AsideCachesOnMiss(t *testing.T) {
	mr, store := newStore(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *profile) func() error {
		return func() error {
			calls++
			*dest = profile{ID: 1, Name: "ada"}
			return nil
		}
	}

	var first profile
	require.NoError(t, store.Aside(ctx, "user", UserKey(1), &first, time.Minute, fetch(&first)))
	assert.Equal(t, "ada", first.Name)
	assert.True(t, mr.Exists("user:1"))

	var second profile
	require.NoError(t, store.Aside(ctx, "user", UserKey(1), &second, time.Minute, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * time.Minute)
	var third profile
	require.NoError(t, store.Aside(ctx, "user", UserKey(1), &third, time.Minute, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestStore_AsidePropagatesFetchError(t *testing.T) {
	mr, store := newStore(t)
	boom := errors.New("db down")

	var dest profile
	err := store.Aside(context.Background(), "user", UserKey(9), &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("user:9"))
}

func TestStore_NilClientIsNoop(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	found, err := store.GetJSON(ctx, "k", &profile{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, store.SetJSON(ctx, "k", profile{}, time.Minute))
	store.Invalidate(ctx, "k")

	calls := 0
	var dest profile
	require.NoError(t, store.Aside(ctx, "user", "k", &dest, time.Minute, func() error { calls++; return nil }))
	require.NoError(t, store.Aside(ctx, "user", "k", &dest, time.Minute, func() error { calls++; return nil }))
	assert.Equal(t, 2, calls)
}

func TestStore_Invalidate(t *testing.T) {
	mr, store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetJSON(ctx, TagCountsKey, []string{"go"}, time.Minute))
	require.NoError(t, store.SetJSON(ctx, CategoriesKey, []string{"tech"}, time.Minute))
	store.Invalidate(ctx, TagCountsKey, CategoriesKey)

	assert.False(t, mr.Exists(TagCountsKey))
	assert.False(t, mr.Exists(CategoriesKey))
}
