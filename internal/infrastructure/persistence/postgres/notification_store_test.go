package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/lumacart/order-gateway/internal/application/services/testhelpers"
	"github.com/lumacart/order-gateway/internal/domain"
	"github.com/lumacart/order-gateway/internal/idempotency"
	"github.com/lumacart/order-gateway/internal/infrastructure/persistence/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	td := testhelpers.SetupTestDatabase(t)
	defer td.Cleanup(t)

	store := postgres.NewNotificationStore(td.DB)
	ctx := context.Background()

	result := idempotency.Result{
		Status:  domain.StatusAwaitingFulfillment,
		Outcome: domain.Applied(),
	}

	t.Run("first begin wins the key", func(t *testing.T) {
		td.CleanTables(t)

		cached, duplicate, err := store.Begin(ctx, "notify/evt-1")
		require.NoError(t, err)
		assert.False(t, duplicate)
		assert.Nil(t, cached)
	})

	t.Run("completed key replays the recorded result", func(t *testing.T) {
		td.CleanTables(t)

		_, _, err := store.Begin(ctx, "notify/evt-2")
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, "notify/evt-2", result))

		cached, duplicate, err := store.Begin(ctx, "notify/evt-2")
		require.NoError(t, err)
		assert.True(t, duplicate)
		require.NotNil(t, cached)
		assert.Equal(t, result.Status, cached.Status)
		assert.Equal(t, result.Outcome.Code, cached.Outcome.Code)
	})

	t.Run("unfinished key reports in flight", func(t *testing.T) {
		td.CleanTables(t)

		_, _, err := store.Begin(ctx, "notify/evt-3")
		require.NoError(t, err)

		cached, duplicate, err := store.Begin(ctx, "notify/evt-3")
		require.NoError(t, err)
		assert.True(t, duplicate)
		assert.Nil(t, cached)
	})

	t.Run("aborted key can be retried", func(t *testing.T) {
		td.CleanTables(t)

		_, _, err := store.Begin(ctx, "notify/evt-4")
		require.NoError(t, err)
		require.NoError(t, store.Abort(ctx, "notify/evt-4"))

		_, duplicate, err := store.Begin(ctx, "notify/evt-4")
		require.NoError(t, err)
		assert.False(t, duplicate)
	})

	t.Run("expired lock is reclaimed", func(t *testing.T) {
		td.CleanTables(t)

		_, _, err := store.Begin(ctx, "notify/evt-5")
		require.NoError(t, err)

		_, err = td.DB.Pool.Exec(ctx,
			`UPDATE notification_keys SET locked_at = $1 WHERE key = 'notify/evt-5'`,
			time.Now().Add(-10*time.Minute))
		require.NoError(t, err)

		cached, duplicate, err := store.Begin(ctx, "notify/evt-5")
		require.NoError(t, err)
		assert.False(t, duplicate)
		assert.Nil(t, cached)
	})

	t.Run("abort does not erase a completed result", func(t *testing.T) {
		td.CleanTables(t)

		_, _, err := store.Begin(ctx, "notify/evt-6")
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, "notify/evt-6", result))
		require.NoError(t, store.Abort(ctx, "notify/evt-6"))

		cached, duplicate, err := store.Begin(ctx, "notify/evt-6")
		require.NoError(t, err)
		assert.True(t, duplicate)
		require.NotNil(t, cached)
	})
}
