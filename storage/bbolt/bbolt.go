// Package bbolt provides BBolt-backed implementations of the storage
// interfaces for single-node persistent deployments.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/AireshBhat/nodedash/internal/uuid"
	"github.com/AireshBhat/nodedash/storage"
)

var (
	bucketUsers       = []byte("users")
	bucketEmails      = []byte("user_emails")
	bucketCredentials = []byte("user_credentials")
	bucketSessions    = []byte("user_sessions")
	bucketPublicKeys  = []byte("public_keys")
	bucketConnections = []byte("network_connections")
	bucketStatuses    = []byte("network_statuses")
)

// Store implements storage.UserStore and storage.NetworkStore backed by a
// single BBolt database file.
type Store struct {
	db *bbolt.DB
}

var (
	_ storage.UserStore    = (*Store)(nil)
	_ storage.NetworkStore = (*Store)(nil)
)

// NewStore wraps an already-open BBolt database, creating the buckets the
// store needs.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketUsers, bucketEmails, bucketCredentials, bucketSessions,
			bucketPublicKeys, bucketConnections, bucketStatuses,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a
// new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func (s *Store) FindUserByID(_ context.Context, id int64) (*storage.User, error) {
	var u storage.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get(itob(id))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	var id int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmails).Get([]byte(email))
		if data == nil {
			return storage.ErrNotFound
		}
		id = int64(binary.BigEndian.Uint64(data))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindUserByID(ctx, id)
}

func (s *Store) CreateUser(_ context.Context, params storage.CreateUser) (*storage.User, error) {
	var u storage.User
	err := s.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(bucketEmails)
		if emails.Get([]byte(params.Email)) != nil {
			return storage.ErrEmailTaken
		}
		users := tx.Bucket(bucketUsers)
		seq, err := users.NextSequence()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		u = storage.User{
			ID:            int64(seq),
			Email:         params.Email,
			Username:      params.Username,
			WalletAddress: params.WalletAddress,
			CreatedAt:     now,
			LastActive:    now,
		}
		if err := putJSON(users, itob(u.ID), &u); err != nil {
			return err
		}
		return emails.Put([]byte(u.Email), itob(u.ID))
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, params storage.UpdateUser) (*storage.User, error) {
	var u storage.User
	err := s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		data := users.Get(itob(id))
		if data == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}

		emails := tx.Bucket(bucketEmails)
		if params.Email != nil && *params.Email != u.Email {
			if emails.Get([]byte(*params.Email)) != nil {
				return storage.ErrEmailTaken
			}
			if err := emails.Delete([]byte(u.Email)); err != nil {
				return err
			}
			if err := emails.Put([]byte(*params.Email), itob(id)); err != nil {
				return err
			}
			u.Email = *params.Email
		}
		if params.Username != nil {
			u.Username = *params.Username
		}
		if params.WalletAddress != nil {
			u.WalletAddress = *params.WalletAddress
		}
		return putJSON(users, itob(id), &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) (bool, error) {
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		data := users.Get(itob(id))
		if data == nil {
			return nil
		}
		var u storage.User
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}

		if err := deleteUserKeys(tx, id); err != nil {
			return err
		}
		if _, err := deleteUserSessionsIn(tx, id); err != nil {
			return err
		}
		if err := tx.Bucket(bucketCredentials).Delete(itob(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketEmails).Delete([]byte(u.Email)); err != nil {
			return err
		}
		if err := users.Delete(itob(id)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func deleteUserKeys(tx *bbolt.Tx, userID int64) error {
	keys := tx.Bucket(bucketPublicKeys)
	c := keys.Cursor()
	var stale [][]byte
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var rec storage.PublicKey
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		if rec.UserID == userID {
			stale = append(stale, append([]byte(nil), k...))
		}
	}
	for _, k := range stale {
		if err := keys.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func deleteUserSessionsIn(tx *bbolt.Tx, userID int64) (int64, error) {
	sessions := tx.Bucket(bucketSessions)
	c := sessions.Cursor()
	var stale [][]byte
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var sess storage.UserSession
		if err := json.Unmarshal(v, &sess); err != nil {
			return 0, err
		}
		if sess.UserID == userID {
			stale = append(stale, append([]byte(nil), k...))
		}
	}
	for _, k := range stale {
		if err := sessions.Delete(k); err != nil {
			return 0, err
		}
	}
	return int64(len(stale)), nil
}

func (s *Store) StoreCredentials(_ context.Context, userID int64, passwordHash, salt []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketCredentials), itob(userID), &storage.Credentials{
			UserID:       userID,
			PasswordHash: passwordHash,
			Salt:         salt,
			UpdatedAt:    time.Now().UTC(),
		})
	})
}

func (s *Store) Credentials(_ context.Context, userID int64) (*storage.Credentials, error) {
	var c storage.Credentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCredentials).Get(itob(userID))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateSession(_ context.Context, userID int64, ipAddress, userAgent string, ttl time.Duration) (*storage.UserSession, error) {
	now := time.Now().UTC()
	sess := &storage.UserSession{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketSessions), []byte(sess.ID), sess)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) FindSessionByID(_ context.Context, sessionID string) (*storage.UserSession, error) {
	var sess storage.UserSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(sessionID))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) (bool, error) {
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		if sessions.Get([]byte(sessionID)) == nil {
			return nil
		}
		deleted = true
		return sessions.Delete([]byte(sessionID))
	})
	return deleted, err
}

func (s *Store) DeleteUserSessions(_ context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		count, err = deleteUserSessionsIn(tx, userID)
		return err
	})
	return count, err
}

func (s *Store) TouchUser(_ context.Context, userID int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		data := users.Get(itob(userID))
		if data == nil {
			return storage.ErrNotFound
		}
		var u storage.User
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		u.LastActive = time.Now().UTC()
		return putJSON(users, itob(userID), &u)
	})
}

func (s *Store) FindUserByPublicKey(ctx context.Context, publicKey string) (*storage.User, error) {
	var userID int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPublicKeys).Get([]byte(publicKey))
		if data == nil {
			return storage.ErrNotFound
		}
		var rec storage.PublicKey
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		userID = rec.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindUserByID(ctx, userID)
}

func (s *Store) StorePublicKey(_ context.Context, userID int64, publicKey string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(bucketPublicKeys)
		if data := keys.Get([]byte(publicKey)); data != nil {
			var rec storage.PublicKey
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			if rec.UserID != userID {
				return storage.ErrKeyOwnedByOtherUser
			}
			return nil
		}
		return putJSON(keys, []byte(publicKey), &storage.PublicKey{
			UserID:    userID,
			Key:       publicKey,
			CreatedAt: time.Now().UTC(),
		})
	})
}

func (s *Store) RevokePublicKey(_ context.Context, userID int64, publicKey string) (bool, error) {
	revoked := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(bucketPublicKeys)
		data := keys.Get([]byte(publicKey))
		if data == nil {
			return nil
		}
		var rec storage.PublicKey
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if rec.UserID != userID {
			return storage.ErrKeyOwnedByOtherUser
		}
		revoked = true
		return keys.Delete([]byte(publicKey))
	})
	return revoked, err
}

func (s *Store) PublicKeysForUser(_ context.Context, userID int64) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketPublicKeys).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec storage.PublicKey
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.UserID == userID {
				out = append(out, rec.Key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) TouchPublicKey(_ context.Context, userID int64, publicKey string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(bucketPublicKeys)
		data := keys.Get([]byte(publicKey))
		if data == nil {
			return storage.ErrNotFound
		}
		var rec storage.PublicKey
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if rec.UserID != userID {
			return storage.ErrNotFound
		}
		rec.LastUsed = time.Now().UTC()
		return putJSON(keys, []byte(publicKey), &rec)
	})
}

func (s *Store) FindConnectionByID(_ context.Context, id int64) (*storage.NetworkConnection, error) {
	var conn storage.NetworkConnection
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketConnections).Get(itob(id))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &conn)
	})
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (s *Store) connectionsWhere(pred func(*storage.NetworkConnection) bool) ([]storage.NetworkConnection, error) {
	var out []storage.NetworkConnection
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketConnections).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var conn storage.NetworkConnection
			if err := json.Unmarshal(v, &conn); err != nil {
				return err
			}
			if pred(&conn) {
				out = append(out, conn)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ConnectionsByUser(_ context.Context, userID int64) ([]storage.NetworkConnection, error) {
	return s.connectionsWhere(func(c *storage.NetworkConnection) bool {
		return c.UserID == userID
	})
}

func (s *Store) ActiveConnectionsByUser(_ context.Context, userID int64) ([]storage.NetworkConnection, error) {
	return s.connectionsWhere(func(c *storage.NetworkConnection) bool {
		return c.UserID == userID && c.Connected
	})
}

func (s *Store) CreateConnection(_ context.Context, params storage.CreateNetworkConnection) (*storage.NetworkConnection, error) {
	var conn storage.NetworkConnection
	err := s.db.Update(func(tx *bbolt.Tx) error {
		connections := tx.Bucket(bucketConnections)
		seq, err := connections.NextSequence()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		conn = storage.NetworkConnection{
			ID:           int64(seq),
			UserID:       params.UserID,
			NetworkName:  params.NetworkName,
			IPAddress:    params.IPAddress,
			Connected:    true,
			NetworkScore: params.InitialScore,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return putJSON(connections, itob(conn.ID), &conn)
	})
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (s *Store) UpdateConnection(_ context.Context, id int64, params storage.UpdateNetworkConnection) (*storage.NetworkConnection, error) {
	var conn storage.NetworkConnection
	err := s.db.Update(func(tx *bbolt.Tx) error {
		connections := tx.Bucket(bucketConnections)
		data := connections.Get(itob(id))
		if data == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(data, &conn); err != nil {
			return err
		}
		if params.Connected != nil {
			conn.Connected = *params.Connected
		}
		if params.NetworkScore != nil {
			conn.NetworkScore = *params.NetworkScore
		}
		if params.AdditionalTime != nil {
			conn.ConnectionTime += *params.AdditionalTime
		}
		if params.AdditionalPoints != nil {
			conn.PointsEarned += *params.AdditionalPoints
		}
		conn.UpdatedAt = time.Now().UTC()
		return putJSON(connections, itob(id), &conn)
	})
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (s *Store) DeleteConnection(_ context.Context, id int64) (bool, error) {
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		connections := tx.Bucket(bucketConnections)
		if connections.Get(itob(id)) == nil {
			return nil
		}
		if err := tx.Bucket(bucketStatuses).Delete(itob(id)); err != nil {
			return err
		}
		deleted = true
		return connections.Delete(itob(id))
	})
	return deleted, err
}

func (s *Store) NetworkStatus(_ context.Context, connectionID int64) (*storage.NetworkStatus, error) {
	var st storage.NetworkStatus
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStatuses).Get(itob(connectionID))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &st)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) UpdateNetworkStatus(_ context.Context, connectionID int64, connected bool, statusMessage string, score *float64) (*storage.NetworkStatus, error) {
	var st storage.NetworkStatus
	err := s.db.Update(func(tx *bbolt.Tx) error {
		connections := tx.Bucket(bucketConnections)
		data := connections.Get(itob(connectionID))
		if data == nil {
			return storage.ErrNotFound
		}
		var conn storage.NetworkConnection
		if err := json.Unmarshal(data, &conn); err != nil {
			return err
		}
		if score != nil {
			conn.NetworkScore = *score
		}
		conn.Connected = connected
		conn.UpdatedAt = time.Now().UTC()
		if err := putJSON(connections, itob(connectionID), &conn); err != nil {
			return err
		}

		st = storage.NetworkStatus{
			ConnectionID:  connectionID,
			UserID:        conn.UserID,
			NetworkName:   conn.NetworkName,
			Connected:     connected,
			StatusMessage: statusMessage,
			NetworkScore:  conn.NetworkScore,
			UpdatedAt:     conn.UpdatedAt,
		}
		return putJSON(tx.Bucket(bucketStatuses), itob(connectionID), &st)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) Statistics(ctx context.Context, userID int64) (*storage.NetworkStatistics, error) {
	conns, err := s.ConnectionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &storage.NetworkStatistics{
		UserID:      userID,
		LastUpdated: time.Now().UTC(),
	}
	var scoreSum float64
	for _, c := range conns {
		stats.TotalNetworks++
		if c.Connected {
			stats.ActiveConnections++
		}
		stats.TotalConnectionTime += c.ConnectionTime
		stats.TotalPointsEarned += c.PointsEarned
		scoreSum += c.NetworkScore
	}
	if stats.TotalNetworks > 0 {
		stats.AverageNetworkScore = scoreSum / float64(stats.TotalNetworks)
	}
	return stats, nil
}

func (s *Store) RecordConnectionTime(ctx context.Context, connectionID int64, seconds int64) (int64, error) {
	conn, err := s.UpdateConnection(ctx, connectionID, storage.UpdateNetworkConnection{AdditionalTime: &seconds})
	if err != nil {
		return 0, err
	}
	return conn.ConnectionTime, nil
}

func (s *Store) RecordEarnedPoints(ctx context.Context, connectionID int64, points float64) (float64, error) {
	conn, err := s.UpdateConnection(ctx, connectionID, storage.UpdateNetworkConnection{AdditionalPoints: &points})
	if err != nil {
		return 0, err
	}
	return conn.PointsEarned, nil
}
