package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AireshBhat/nodedash/storage"
	"github.com/AireshBhat/nodedash/storage/memory"
)

func TestUserCRUD(t *testing.T) {
	s := memory.NewUserStore()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, storage.CreateUser{Email: "alice@example.com", Username: "alice"})
	require.NoError(t, err)
	require.NotZero(t, u.ID)

	_, err = s.CreateUser(ctx, storage.CreateUser{Email: "alice@example.com", Username: "alice2"})
	assert.ErrorIs(t, err, storage.ErrEmailTaken)

	got, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	got, err = s.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	newName := "alice-renamed"
	got, err = s.UpdateUser(ctx, u.ID, storage.UpdateUser{Username: &newName})
	require.NoError(t, err)
	assert.Equal(t, newName, got.Username)

	newEmail := "alice@new.example.com"
	_, err = s.UpdateUser(ctx, u.ID, storage.UpdateUser{Email: &newEmail})
	require.NoError(t, err)
	_, err = s.FindUserByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	got, err = s.FindUserByEmail(ctx, newEmail)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	deleted, err := s.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.FindUserByID(ctx, u.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPublicKeyLifecycle(t *testing.T) {
	s := memory.NewUserStore()
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, storage.CreateUser{Email: "alice@example.com", Username: "alice"})
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, storage.CreateUser{Email: "bob@example.com", Username: "bob"})
	require.NoError(t, err)

	const key = "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"

	require.NoError(t, s.StorePublicKey(ctx, alice.ID, key))
	// Same key, same user: idempotent.
	require.NoError(t, s.StorePublicKey(ctx, alice.ID, key))

	keys, err := s.PublicKeysForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys, "idempotent registration must not duplicate")

	// Same key, different user: rejected.
	err = s.StorePublicKey(ctx, bob.ID, key)
	assert.ErrorIs(t, err, storage.ErrKeyOwnedByOtherUser)

	owner, err := s.FindUserByPublicKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, owner.ID)

	_, err = s.FindUserByPublicKey(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.TouchPublicKey(ctx, alice.ID, key))

	// Revoking someone else's key fails; revoking your own succeeds once.
	_, err = s.RevokePublicKey(ctx, bob.ID, key)
	assert.ErrorIs(t, err, storage.ErrKeyOwnedByOtherUser)

	revoked, err := s.RevokePublicKey(ctx, alice.ID, key)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = s.RevokePublicKey(ctx, alice.ID, key)
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = s.FindUserByPublicKey(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessions(t *testing.T) {
	s := memory.NewUserStore()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, storage.CreateUser{Email: "alice@example.com", Username: "alice"})
	require.NoError(t, err)

	sess, err := s.CreateSession(ctx, u.ID, "127.0.0.1", "test-agent", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	assert.True(t, sess.ExpiresAt.After(sess.CreatedAt))

	got, err := s.FindSessionByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	_, err = s.CreateSession(ctx, u.ID, "127.0.0.1", "test-agent", time.Hour)
	require.NoError(t, err)

	count, err := s.DeleteUserSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, err = s.FindSessionByID(ctx, sess.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCredentials(t *testing.T) {
	s := memory.NewUserStore()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, storage.CreateUser{Email: "alice@example.com", Username: "alice"})
	require.NoError(t, err)

	require.NoError(t, s.StoreCredentials(ctx, u.ID, []byte("hash"), []byte("salt")))
	creds, err := s.Credentials(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hash"), creds.PasswordHash)
	assert.Equal(t, []byte("salt"), creds.Salt)

	_, err = s.Credentials(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNetworkConnections(t *testing.T) {
	s := memory.NewNetworkStore()
	ctx := context.Background()

	conn, err := s.CreateConnection(ctx, storage.CreateNetworkConnection{
		UserID:       1,
		NetworkName:  "mesh-eu-1",
		IPAddress:    "10.0.0.4",
		InitialScore: 0.8,
	})
	require.NoError(t, err)
	assert.True(t, conn.Connected)

	disconnected := false
	updated, err := s.UpdateConnection(ctx, conn.ID, storage.UpdateNetworkConnection{Connected: &disconnected})
	require.NoError(t, err)
	assert.False(t, updated.Connected)

	total, err := s.RecordConnectionTime(ctx, conn.ID, 120)
	require.NoError(t, err)
	assert.EqualValues(t, 120, total)

	points, err := s.RecordEarnedPoints(ctx, conn.ID, 2.5)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, points, 1e-9)

	st, err := s.UpdateNetworkStatus(ctx, conn.ID, true, "back online", nil)
	require.NoError(t, err)
	assert.True(t, st.Connected)
	assert.Equal(t, "back online", st.StatusMessage)

	stats, err := s.Statistics(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalNetworks)
	assert.EqualValues(t, 1, stats.ActiveConnections)
	assert.EqualValues(t, 120, stats.TotalConnectionTime)
	assert.InDelta(t, 2.5, stats.TotalPointsEarned, 1e-9)
	assert.InDelta(t, 0.8, stats.AverageNetworkScore, 1e-9)

	deleted, err := s.DeleteConnection(ctx, conn.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = s.FindConnectionByID(ctx, conn.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
