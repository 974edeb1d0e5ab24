// Package memory provides thread-safe in-memory implementations of the
// storage interfaces. Suitable for development, testing and single-process
// deployments without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AireshBhat/nodedash/internal/uuid"
	"github.com/AireshBhat/nodedash/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu          sync.RWMutex
	users       map[int64]*storage.User
	emails      map[string]int64
	credentials map[int64]*storage.Credentials
	sessions    map[string]*storage.UserSession
	keys        map[string]*storage.PublicKey // hex key -> record
	userKeys    map[int64][]string
	nextID      int64
}

var _ storage.UserStore = (*UserStore)(nil)

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:       make(map[int64]*storage.User),
		emails:      make(map[string]int64),
		credentials: make(map[int64]*storage.Credentials),
		sessions:    make(map[string]*storage.UserSession),
		keys:        make(map[string]*storage.PublicKey),
		userKeys:    make(map[int64][]string),
		nextID:      1,
	}
}

func cloneUser(u *storage.User) *storage.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (s *UserStore) FindUserByID(_ context.Context, id int64) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) FindUserByEmail(_ context.Context, email string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *UserStore) CreateUser(_ context.Context, params storage.CreateUser) (*storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[params.Email]; ok {
		return nil, storage.ErrEmailTaken
	}

	now := time.Now().UTC()
	u := &storage.User{
		ID:            s.nextID,
		Email:         params.Email,
		Username:      params.Username,
		WalletAddress: params.WalletAddress,
		CreatedAt:     now,
		LastActive:    now,
	}
	s.nextID++
	s.users[u.ID] = u
	s.emails[u.Email] = u.ID
	return cloneUser(u), nil
}

func (s *UserStore) UpdateUser(_ context.Context, id int64, params storage.UpdateUser) (*storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	if params.Email != nil && *params.Email != u.Email {
		if _, taken := s.emails[*params.Email]; taken {
			return nil, storage.ErrEmailTaken
		}
		delete(s.emails, u.Email)
		s.emails[*params.Email] = id
		u.Email = *params.Email
	}
	if params.Username != nil {
		u.Username = *params.Username
	}
	if params.WalletAddress != nil {
		u.WalletAddress = *params.WalletAddress
	}
	return cloneUser(u), nil
}

func (s *UserStore) DeleteUser(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, nil
	}

	for _, key := range s.userKeys[id] {
		delete(s.keys, key)
	}
	delete(s.userKeys, id)
	for token, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, token)
		}
	}
	delete(s.credentials, id)
	delete(s.emails, u.Email)
	delete(s.users, id)
	return true, nil
}

func (s *UserStore) StoreCredentials(_ context.Context, userID int64, passwordHash, salt []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[userID] = &storage.Credentials{
		UserID:       userID,
		PasswordHash: append([]byte(nil), passwordHash...),
		Salt:         append([]byte(nil), salt...),
		UpdatedAt:    time.Now().UTC(),
	}
	return nil
}

func (s *UserStore) Credentials(_ context.Context, userID int64) (*storage.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *c
	clone.PasswordHash = append([]byte(nil), c.PasswordHash...)
	clone.Salt = append([]byte(nil), c.Salt...)
	return &clone, nil
}

func (s *UserStore) CreateSession(_ context.Context, userID int64, ipAddress, userAgent string, ttl time.Duration) (*storage.UserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	sess := &storage.UserSession{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	s.sessions[sess.ID] = sess
	clone := *sess
	return &clone, nil
}

func (s *UserStore) FindSessionByID(_ context.Context, sessionID string) (*storage.UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *sess
	return &clone, nil
}

func (s *UserStore) DeleteSession(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

func (s *UserStore) DeleteUserSessions(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
			count++
		}
	}
	return count, nil
}

func (s *UserStore) TouchUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.LastActive = time.Now().UTC()
	return nil
}

func (s *UserStore) FindUserByPublicKey(_ context.Context, publicKey string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[publicKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(s.users[rec.UserID]), nil
}

func (s *UserStore) StorePublicKey(_ context.Context, userID int64, publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.keys[publicKey]; ok {
		if rec.UserID != userID {
			return storage.ErrKeyOwnedByOtherUser
		}
		return nil
	}
	s.keys[publicKey] = &storage.PublicKey{
		UserID:    userID,
		Key:       publicKey,
		CreatedAt: time.Now().UTC(),
	}
	s.userKeys[userID] = append(s.userKeys[userID], publicKey)
	return nil
}

func (s *UserStore) RevokePublicKey(_ context.Context, userID int64, publicKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[publicKey]
	if !ok {
		return false, nil
	}
	if rec.UserID != userID {
		return false, storage.ErrKeyOwnedByOtherUser
	}
	delete(s.keys, publicKey)
	keys := s.userKeys[userID]
	for i, k := range keys {
		if k == publicKey {
			s.userKeys[userID] = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *UserStore) PublicKeysForUser(_ context.Context, userID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.userKeys[userID]...), nil
}

func (s *UserStore) TouchPublicKey(_ context.Context, userID int64, publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[publicKey]
	if !ok || rec.UserID != userID {
		return storage.ErrNotFound
	}
	rec.LastUsed = time.Now().UTC()
	return nil
}

// NetworkStore is an in-memory implementation of storage.NetworkStore.
type NetworkStore struct {
	mu          sync.RWMutex
	connections map[int64]*storage.NetworkConnection
	statuses    map[int64]*storage.NetworkStatus
	nextID      int64
}

var _ storage.NetworkStore = (*NetworkStore)(nil)

// NewNetworkStore creates an empty in-memory network store.
func NewNetworkStore() *NetworkStore {
	return &NetworkStore{
		connections: make(map[int64]*storage.NetworkConnection),
		statuses:    make(map[int64]*storage.NetworkStatus),
		nextID:      1,
	}
}

func cloneConnection(c *storage.NetworkConnection) *storage.NetworkConnection {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

func (s *NetworkStore) FindConnectionByID(_ context.Context, id int64) (*storage.NetworkConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneConnection(c), nil
}

func (s *NetworkStore) ConnectionsByUser(_ context.Context, userID int64) ([]storage.NetworkConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.NetworkConnection
	for _, c := range s.connections {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *NetworkStore) ActiveConnectionsByUser(_ context.Context, userID int64) ([]storage.NetworkConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.NetworkConnection
	for _, c := range s.connections {
		if c.UserID == userID && c.Connected {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *NetworkStore) CreateConnection(_ context.Context, params storage.CreateNetworkConnection) (*storage.NetworkConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	c := &storage.NetworkConnection{
		ID:           s.nextID,
		UserID:       params.UserID,
		NetworkName:  params.NetworkName,
		IPAddress:    params.IPAddress,
		Connected:    true,
		NetworkScore: params.InitialScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.nextID++
	s.connections[c.ID] = c
	return cloneConnection(c), nil
}

func (s *NetworkStore) UpdateConnection(_ context.Context, id int64, params storage.UpdateNetworkConnection) (*storage.NetworkConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if params.Connected != nil {
		c.Connected = *params.Connected
	}
	if params.NetworkScore != nil {
		c.NetworkScore = *params.NetworkScore
	}
	if params.AdditionalTime != nil {
		c.ConnectionTime += *params.AdditionalTime
	}
	if params.AdditionalPoints != nil {
		c.PointsEarned += *params.AdditionalPoints
	}
	c.UpdatedAt = time.Now().UTC()
	return cloneConnection(c), nil
}

func (s *NetworkStore) DeleteConnection(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[id]; !ok {
		return false, nil
	}
	delete(s.connections, id)
	delete(s.statuses, id)
	return true, nil
}

func (s *NetworkStore) NetworkStatus(_ context.Context, connectionID int64) (*storage.NetworkStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[connectionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *st
	return &clone, nil
}

func (s *NetworkStore) UpdateNetworkStatus(_ context.Context, connectionID int64, connected bool, statusMessage string, score *float64) (*storage.NetworkStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if score != nil {
		c.NetworkScore = *score
	}
	c.Connected = connected
	c.UpdatedAt = time.Now().UTC()

	st := &storage.NetworkStatus{
		ConnectionID:  connectionID,
		UserID:        c.UserID,
		NetworkName:   c.NetworkName,
		Connected:     connected,
		StatusMessage: statusMessage,
		NetworkScore:  c.NetworkScore,
		UpdatedAt:     c.UpdatedAt,
	}
	s.statuses[connectionID] = st
	clone := *st
	return &clone, nil
}

func (s *NetworkStore) Statistics(_ context.Context, userID int64) (*storage.NetworkStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &storage.NetworkStatistics{
		UserID:      userID,
		LastUpdated: time.Now().UTC(),
	}
	var scoreSum float64
	for _, c := range s.connections {
		if c.UserID != userID {
			continue
		}
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

func (s *NetworkStore) RecordConnectionTime(_ context.Context, connectionID int64, seconds int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	c.ConnectionTime += seconds
	c.UpdatedAt = time.Now().UTC()
	return c.ConnectionTime, nil
}

func (s *NetworkStore) RecordEarnedPoints(_ context.Context, connectionID int64, points float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	c.PointsEarned += points
	c.UpdatedAt = time.Now().UTC()
	return c.PointsEarned, nil
}
