package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AireshBhat/nodedash/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("NODEDASH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NODEDASH_TEST_POSTGRES_DSN not set; skipping PostgreSQL tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("could not ensure schema: %v", err)
	}

	cleanup := func() {
		// users cascades to credentials, sessions, keys and connections.
		pool.Exec(ctx, "DELETE FROM users") //nolint:errcheck
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		pool.Close()
	})
	return NewStore(pool)
}

func TestUserRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, storage.CreateUser{
		Email:    "alice@example.com",
		Username: "alice",
	})
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, storage.CreateUser{Email: "alice@example.com", Username: "dup"})
	assert.ErrorIs(t, err, storage.ErrEmailTaken)

	wallet := "0xabc"
	updated, err := store.UpdateUser(ctx, created.ID, storage.UpdateUser{WalletAddress: &wallet})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", updated.WalletAddress)

	found, err := store.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	deleted, err := store.DeleteUser(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.FindUserByID(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPublicKeyOwnership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice, err := store.CreateUser(ctx, storage.CreateUser{Email: "alice@example.com", Username: "alice"})
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, storage.CreateUser{Email: "bob@example.com", Username: "bob"})
	require.NoError(t, err)

	const key = "3d4017c3e843895a92b70aa74d1b7ebc9c982ccf2ec4968cc0cd55f12af4660c"
	require.NoError(t, store.StorePublicKey(ctx, alice.ID, key))
	require.NoError(t, store.StorePublicKey(ctx, alice.ID, key))
	assert.ErrorIs(t, store.StorePublicKey(ctx, bob.ID, key), storage.ErrKeyOwnedByOtherUser)

	owner, err := store.FindUserByPublicKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, owner.ID)

	require.NoError(t, store.TouchPublicKey(ctx, alice.ID, key))

	revoked, err := store.RevokePublicKey(ctx, alice.ID, key)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.RevokePublicKey(ctx, alice.ID, key)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestNetworkStatistics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, storage.CreateUser{Email: "alice@example.com", Username: "alice"})
	require.NoError(t, err)

	conn, err := store.CreateConnection(ctx, storage.CreateNetworkConnection{
		UserID:      u.ID,
		NetworkName: "mainnet",
	})
	require.NoError(t, err)

	score := 0.8
	_, err = store.UpdateNetworkStatus(ctx, conn.ID, true, "healthy", &score)
	require.NoError(t, err)

	_, err = store.RecordConnectionTime(ctx, conn.ID, 60)
	require.NoError(t, err)
	_, err = store.RecordEarnedPoints(ctx, conn.ID, 2.5)
	require.NoError(t, err)

	stats, err := store.Statistics(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalNetworks)
	assert.Equal(t, int64(1), stats.ActiveConnections)
	assert.Equal(t, int64(60), stats.TotalConnectionTime)
	assert.Equal(t, 2.5, stats.TotalPointsEarned)
	assert.Equal(t, 0.8, stats.AverageNetworkScore)
}
