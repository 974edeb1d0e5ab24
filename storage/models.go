package storage

import "time"

// User is an account registered with the dashboard.
type User struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastActive    time.Time `json:"last_active"`
}

// Credentials holds a user's password hash and the salt it was derived with.
type Credentials struct {
	UserID       int64     `json:"user_id"`
	PasswordHash []byte    `json:"password_hash"`
	Salt         []byte    `json:"salt"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserSession is a server-side login session created by the REST login flow.
type UserSession struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}

// PublicKey is a hex-encoded ed25519 verification key registered to a user.
// LastUsed is advisory telemetry and never feeds authorization decisions.
type PublicKey struct {
	UserID    int64     `json:"user_id"`
	Key       string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used,omitempty"`
}

// CreateUser are the parameters for UserStore.CreateUser.
type CreateUser struct {
	Email         string `json:"email"`
	Username      string `json:"username"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// UpdateUser are the parameters for UserStore.UpdateUser. Nil fields are
// left unchanged.
type UpdateUser struct {
	Email         *string `json:"email,omitempty"`
	Username      *string `json:"username,omitempty"`
	WalletAddress *string `json:"wallet_address,omitempty"`
}

// NetworkConnection is one node's connection to a shared network.
type NetworkConnection struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	NetworkName    string    `json:"network_name"`
	IPAddress      string    `json:"ip_address"`
	Connected      bool      `json:"connected"`
	ConnectionTime int64     `json:"connection_time"`
	NetworkScore   float64   `json:"network_score"`
	PointsEarned   float64   `json:"points_earned"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NetworkStatus is the most recently reported state of a connection.
type NetworkStatus struct {
	ConnectionID  int64     `json:"connection_id"`
	UserID        int64     `json:"user_id"`
	NetworkName   string    `json:"network_name"`
	Connected     bool      `json:"connected"`
	StatusMessage string    `json:"status_message"`
	NetworkScore  float64   `json:"network_score"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NetworkStatistics aggregates a user's connections.
type NetworkStatistics struct {
	UserID              int64     `json:"user_id"`
	TotalNetworks       int64     `json:"total_networks"`
	ActiveConnections   int64     `json:"active_connections"`
	TotalConnectionTime int64     `json:"total_connection_time"`
	AverageNetworkScore float64   `json:"average_network_score"`
	TotalPointsEarned   float64   `json:"total_points_earned"`
	LastUpdated         time.Time `json:"last_updated"`
}

// CreateNetworkConnection are the parameters for NetworkStore.CreateConnection.
type CreateNetworkConnection struct {
	UserID       int64   `json:"user_id"`
	NetworkName  string  `json:"network_name"`
	IPAddress    string  `json:"ip_address"`
	InitialScore float64 `json:"initial_score,omitempty"`
}

// UpdateNetworkConnection are the parameters for NetworkStore.UpdateConnection.
// Nil fields are left unchanged; AdditionalTime and AdditionalPoints
// accumulate rather than overwrite.
type UpdateNetworkConnection struct {
	Connected        *bool    `json:"connected,omitempty"`
	NetworkScore     *float64 `json:"network_score,omitempty"`
	AdditionalTime   *int64   `json:"additional_time,omitempty"`
	AdditionalPoints *float64 `json:"additional_points,omitempty"`
}
