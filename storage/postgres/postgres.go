// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AireshBhat/nodedash/internal/uuid"
	"github.com/AireshBhat/nodedash/storage"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// Store implements storage.UserStore and storage.NetworkStore backed by
// PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ storage.UserStore    = (*Store)(nil)
	_ storage.NetworkStore = (*Store)(nil)
)

// NewStore returns a Store backed by the given pgx connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewStoreFromDSN creates a connection pool from a DSN string, ensures the
// schema exists, and returns a new Store.
func NewStoreFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewStore(pool), nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanUser(row pgx.Row) (*storage.User, error) {
	var u storage.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.WalletAddress, &u.CreatedAt, &u.LastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userColumns = `id, email, username, wallet_address, created_at, last_active`

func (s *Store) FindUserByID(ctx context.Context, id int64) (*storage.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *Store) CreateUser(ctx context.Context, params storage.CreateUser) (*storage.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, wallet_address)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		params.Email, params.Username, params.WalletAddress))
	if isUniqueViolation(err) {
		return nil, storage.ErrEmailTaken
	}
	return u, err
}

func (s *Store) UpdateUser(ctx context.Context, id int64, params storage.UpdateUser) (*storage.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET
		    email          = COALESCE($2, email),
		    username       = COALESCE($3, username),
		    wallet_address = COALESCE($4, wallet_address)
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, params.Email, params.Username, params.WalletAddress))
	if isUniqueViolation(err) {
		return nil, storage.ErrEmailTaken
	}
	return u, err
}

func (s *Store) DeleteUser(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) StoreCredentials(ctx context.Context, userID int64, passwordHash, salt []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_credentials (user_id, password_hash, salt, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id)
		 DO UPDATE SET password_hash = $2, salt = $3, updated_at = now()`,
		userID, passwordHash, salt)
	return err
}

func (s *Store) Credentials(ctx context.Context, userID int64) (*storage.Credentials, error) {
	var c storage.Credentials
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, password_hash, salt, updated_at
		 FROM user_credentials WHERE user_id = $1`, userID).Scan(
		&c.UserID, &c.PasswordHash, &c.Salt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateSession(ctx context.Context, userID int64, ipAddress, userAgent string, ttl time.Duration) (*storage.UserSession, error) {
	now := time.Now().UTC()
	sess := &storage.UserSession{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_sessions (id, user_id, created_at, expires_at, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt, sess.IPAddress, sess.UserAgent)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) FindSessionByID(ctx context.Context, sessionID string) (*storage.UserSession, error) {
	var sess storage.UserSession
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, expires_at, ip_address, user_agent
		 FROM user_sessions WHERE id = $1`, sessionID).Scan(
		&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &sess.IPAddress, &sess.UserAgent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) TouchUser(ctx context.Context, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET last_active = now() WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) FindUserByPublicKey(ctx context.Context, publicKey string) (*storage.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.username, u.wallet_address, u.created_at, u.last_active
		 FROM users u JOIN public_keys k ON k.user_id = u.id
		 WHERE k.key = $1`, publicKey))
}

func (s *Store) StorePublicKey(ctx context.Context, userID int64, publicKey string) error {
	// ON CONFLICT DO NOTHING keeps re-registration by the owner idempotent;
	// a zero-row result with a different owner means the key is taken.
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO public_keys (key, user_id) VALUES ($1, $2)
		 ON CONFLICT (key) DO NOTHING`,
		publicKey, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var ownerID int64
	err = s.pool.QueryRow(ctx,
		`SELECT user_id FROM public_keys WHERE key = $1`, publicKey).Scan(&ownerID)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return storage.ErrKeyOwnedByOtherUser
	}
	return nil
}

func (s *Store) RevokePublicKey(ctx context.Context, userID int64, publicKey string) (bool, error) {
	var ownerID int64
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM public_keys WHERE key = $1`, publicKey).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if ownerID != userID {
		return false, storage.ErrKeyOwnedByOtherUser
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM public_keys WHERE key = $1 AND user_id = $2`, publicKey, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) PublicKeysForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM public_keys WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (s *Store) TouchPublicKey(ctx context.Context, userID int64, publicKey string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE public_keys SET last_used = now() WHERE key = $1 AND user_id = $2`,
		publicKey, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const connectionColumns = `id, user_id, network_name, ip_address, connected,
	network_score, connection_time, points_earned, created_at, updated_at`

func scanConnection(row pgx.Row) (*storage.NetworkConnection, error) {
	var c storage.NetworkConnection
	err := row.Scan(&c.ID, &c.UserID, &c.NetworkName, &c.IPAddress, &c.Connected,
		&c.NetworkScore, &c.ConnectionTime, &c.PointsEarned, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) FindConnectionByID(ctx context.Context, id int64) (*storage.NetworkConnection, error) {
	return scanConnection(s.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM network_connections WHERE id = $1`, id))
}

func (s *Store) connectionsQuery(ctx context.Context, query string, args ...any) ([]storage.NetworkConnection, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.NetworkConnection
	for rows.Next() {
		var c storage.NetworkConnection
		if err := rows.Scan(&c.ID, &c.UserID, &c.NetworkName, &c.IPAddress, &c.Connected,
			&c.NetworkScore, &c.ConnectionTime, &c.PointsEarned, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ConnectionsByUser(ctx context.Context, userID int64) ([]storage.NetworkConnection, error) {
	return s.connectionsQuery(ctx,
		`SELECT `+connectionColumns+` FROM network_connections
		 WHERE user_id = $1 ORDER BY id`, userID)
}

func (s *Store) ActiveConnectionsByUser(ctx context.Context, userID int64) ([]storage.NetworkConnection, error) {
	return s.connectionsQuery(ctx,
		`SELECT `+connectionColumns+` FROM network_connections
		 WHERE user_id = $1 AND connected ORDER BY id`, userID)
}

func (s *Store) CreateConnection(ctx context.Context, params storage.CreateNetworkConnection) (*storage.NetworkConnection, error) {
	return scanConnection(s.pool.QueryRow(ctx,
		`INSERT INTO network_connections (user_id, network_name, ip_address, connected, network_score)
		 VALUES ($1, $2, $3, TRUE, $4)
		 RETURNING `+connectionColumns,
		params.UserID, params.NetworkName, params.IPAddress, params.InitialScore))
}

func (s *Store) UpdateConnection(ctx context.Context, id int64, params storage.UpdateNetworkConnection) (*storage.NetworkConnection, error) {
	return scanConnection(s.pool.QueryRow(ctx,
		`UPDATE network_connections SET
		    connected       = COALESCE($2, connected),
		    network_score   = COALESCE($3, network_score),
		    connection_time = connection_time + COALESCE($4, 0),
		    points_earned   = points_earned + COALESCE($5, 0),
		    updated_at      = now()
		 WHERE id = $1
		 RETURNING `+connectionColumns,
		id, params.Connected, params.NetworkScore, params.AdditionalTime, params.AdditionalPoints))
}

func (s *Store) DeleteConnection(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM network_connections WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) NetworkStatus(ctx context.Context, connectionID int64) (*storage.NetworkStatus, error) {
	var st storage.NetworkStatus
	err := s.pool.QueryRow(ctx,
		`SELECT connection_id, user_id, network_name, connected, status_message, network_score, updated_at
		 FROM network_statuses WHERE connection_id = $1`, connectionID).Scan(
		&st.ConnectionID, &st.UserID, &st.NetworkName, &st.Connected,
		&st.StatusMessage, &st.NetworkScore, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) UpdateNetworkStatus(ctx context.Context, connectionID int64, connected bool, statusMessage string, score *float64) (*storage.NetworkStatus, error) {
	conn, err := s.UpdateConnection(ctx, connectionID, storage.UpdateNetworkConnection{
		Connected:    &connected,
		NetworkScore: score,
	})
	if err != nil {
		return nil, err
	}
	st := &storage.NetworkStatus{
		ConnectionID:  conn.ID,
		UserID:        conn.UserID,
		NetworkName:   conn.NetworkName,
		Connected:     conn.Connected,
		StatusMessage: statusMessage,
		NetworkScore:  conn.NetworkScore,
		UpdatedAt:     conn.UpdatedAt,
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO network_statuses (connection_id, user_id, network_name, connected, status_message, network_score, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (connection_id)
		 DO UPDATE SET connected = $4, status_message = $5, network_score = $6, updated_at = $7`,
		st.ConnectionID, st.UserID, st.NetworkName, st.Connected, st.StatusMessage, st.NetworkScore, st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) Statistics(ctx context.Context, userID int64) (*storage.NetworkStatistics, error) {
	stats := &storage.NetworkStatistics{
		UserID:      userID,
		LastUpdated: time.Now().UTC(),
	}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE connected),
		        COALESCE(SUM(connection_time), 0),
		        COALESCE(SUM(points_earned), 0),
		        COALESCE(AVG(network_score), 0)
		 FROM network_connections WHERE user_id = $1`, userID).Scan(
		&stats.TotalNetworks, &stats.ActiveConnections,
		&stats.TotalConnectionTime, &stats.TotalPointsEarned, &stats.AverageNetworkScore)
	if err != nil {
		return nil, err
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
