package kvtest

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/growthfarm/internal/client/repositories/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunContract exercises the behaviour every kv.Store backend must share.
// newStore must return an empty, open store and register its own cleanup.
func RunContract(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Helper()

	t.Run("SetThenGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "token", "abc"))

		v, ok, err := s.Get(ctx, "token")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc", v)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)

		v, ok, err := s.Get(context.Background(), "absent")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", "old"))
		require.NoError(t, s.Set(ctx, "k", "new"))

		v, _, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "new", v)
	})

	t.Run("EmptyValueIsPresent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", ""))
		v, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, v)
	})

	t.Run("RemoveIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "x", "1"))
		require.NoError(t, s.Remove(ctx, "x"))
		require.NoError(t, s.Remove(ctx, "x"))

		_, ok, err := s.Get(ctx, "x")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RemoveAllLeavesOthers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "a", "1"))
		require.NoError(t, s.Set(ctx, "b", "2"))
		require.NoError(t, s.Set(ctx, "c", "3"))
		require.NoError(t, s.RemoveAll(ctx, []string{"a", "b", "missing"}))

		m, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"c": "3"}, m)
	})

	t.Run("UpdateRemovesThenSets", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "guestMode", "true"))
		require.NoError(t, s.Set(ctx, "keep", "yes"))

		err := s.Update(ctx,
			map[string]string{"token": "abc", "user": `{"id":"1"}`},
			[]string{"guestMode", "token"},
		)
		require.NoError(t, err)

		m, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"token": "abc", "user": `{"id":"1"}`, "keep": "yes"}, m)
	})

	t.Run("ClearRemovesEverything", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "token", "abc"))
		require.NoError(t, s.Set(ctx, "cache:prices", "[]"))
		require.NoError(t, s.Clear(ctx))
		require.NoError(t, s.Clear(ctx))

		m, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, m)
	})
}
