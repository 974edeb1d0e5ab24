// Package storage defines the persistence interfaces consumed by the rest
// of the application. Implementations live in the memory, bbolt and
// postgres subpackages; the concrete backend is selected at startup.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when creating or updating a user would
// collide with an existing email address.
var ErrEmailTaken = errors.New("email already in use")

// ErrKeyOwnedByOtherUser is returned when a public key is already
// registered to a different user. Registering the same key for the same
// user is idempotent and succeeds.
var ErrKeyOwnedByOtherUser = errors.New("public key already associated with another user")

// UserStore is the user directory: accounts, credentials, login sessions
// and the public keys used for WebSocket signature authentication.
//
// All operations are safe for concurrent use. Callers must treat any
// storage error during authentication as an authentication failure (fail
// closed), never as an implicit success.
type UserStore interface {
	FindUserByID(ctx context.Context, id int64) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, params CreateUser) (*User, error)
	UpdateUser(ctx context.Context, id int64, params UpdateUser) (*User, error)
	// DeleteUser removes the user together with their sessions and public
	// keys. Reports whether a user was actually deleted.
	DeleteUser(ctx context.Context, id int64) (bool, error)

	StoreCredentials(ctx context.Context, userID int64, passwordHash, salt []byte) error
	Credentials(ctx context.Context, userID int64) (*Credentials, error)

	CreateSession(ctx context.Context, userID int64, ipAddress, userAgent string, ttl time.Duration) (*UserSession, error)
	FindSessionByID(ctx context.Context, sessionID string) (*UserSession, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
	DeleteUserSessions(ctx context.Context, userID int64) (int64, error)

	// TouchUser updates the user's last-active timestamp.
	TouchUser(ctx context.Context, userID int64) error

	// FindUserByPublicKey resolves a hex-encoded public key to its owner.
	// Returns ErrNotFound when no user holds the key: a valid signature
	// from an unregistered key must authenticate nothing.
	FindUserByPublicKey(ctx context.Context, publicKey string) (*User, error)
	// StorePublicKey registers a key for a user. Idempotent when the key
	// is already registered to the same user; returns
	// ErrKeyOwnedByOtherUser when it belongs to someone else.
	StorePublicKey(ctx context.Context, userID int64, publicKey string) error
	// RevokePublicKey removes a key from a user. Reports whether a key
	// was actually removed; returns ErrKeyOwnedByOtherUser when the key
	// belongs to a different user.
	RevokePublicKey(ctx context.Context, userID int64, publicKey string) (bool, error)
	PublicKeysForUser(ctx context.Context, userID int64) ([]string, error)
	// TouchPublicKey updates the key's last-used timestamp. Advisory
	// telemetry only: callers treat failures as non-fatal.
	TouchPublicKey(ctx context.Context, userID int64, publicKey string) error
}

// NetworkStore persists the network connections a user's nodes report
// through the dashboard, along with per-connection status and aggregate
// statistics.
type NetworkStore interface {
	FindConnectionByID(ctx context.Context, id int64) (*NetworkConnection, error)
	ConnectionsByUser(ctx context.Context, userID int64) ([]NetworkConnection, error)
	ActiveConnectionsByUser(ctx context.Context, userID int64) ([]NetworkConnection, error)
	CreateConnection(ctx context.Context, params CreateNetworkConnection) (*NetworkConnection, error)
	UpdateConnection(ctx context.Context, id int64, params UpdateNetworkConnection) (*NetworkConnection, error)
	DeleteConnection(ctx context.Context, id int64) (bool, error)

	NetworkStatus(ctx context.Context, connectionID int64) (*NetworkStatus, error)
	UpdateNetworkStatus(ctx context.Context, connectionID int64, connected bool, statusMessage string, score *float64) (*NetworkStatus, error)

	Statistics(ctx context.Context, userID int64) (*NetworkStatistics, error)
	RecordConnectionTime(ctx context.Context, connectionID int64, seconds int64) (int64, error)
	RecordEarnedPoints(ctx context.Context, connectionID int64, points float64) (float64, error)
}
