// Package storetest holds behaviour every CookieStore backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCookieStore exercises a fresh, empty store returned by newStore.
func RunCookieStore(t *testing.T, newStore func(t *testing.T) application.CookieStore) {
	t.Helper()

	t.Run("set then get", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		require.NoError(t, store.Set(ctx, domain.Cookie{Name: "kndctr_ORG_AdobeOrg_identity", Value: "v1", Domain: "example.com"}))

		value, ok, err := store.Get(ctx, "kndctr_ORG_AdobeOrg_identity")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v1", value)
	})

	t.Run("missing cookie", func(t *testing.T) {
		_, ok, err := newStore(t).Get(context.Background(), "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set overwrites", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		require.NoError(t, store.Set(ctx, domain.Cookie{Name: "k", Value: "v1"}))
		require.NoError(t, store.Set(ctx, domain.Cookie{Name: "k", Value: "v2"}))

		all, err := store.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"k": "v2"}, all)
	})

	t.Run("expired cookies are hidden and swept", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		past := time.Now().Add(-time.Hour)
		future := time.Now().Add(time.Hour)

		require.NoError(t, store.Set(ctx, domain.Cookie{Name: "stale", Value: "a", ExpiresAt: &past}))
		require.NoError(t, store.Set(ctx, domain.Cookie{Name: "fresh", Value: "b", ExpiresAt: &future}))
		require.NoError(t, store.Set(ctx, domain.Cookie{Name: "session", Value: "c"}))

		all, err := store.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"fresh": "b", "session": "c"}, all)

		_, ok, err := store.Get(ctx, "stale")
		require.NoError(t, err)
		assert.False(t, ok)

		deleted, err := store.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		deleted, err = store.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}
