package api

import (
	"time"

	"github.com/AireshBhat/nodedash/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterUserRequest is the body of POST /users.
type RegisterUserRequest struct {
	Email         string `json:"email"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// UpdateUserRequest is the body of PUT /users/{userID}. Absent fields are
// left unchanged.
type UpdateUserRequest struct {
	Email         *string `json:"email,omitempty"`
	Username      *string `json:"username,omitempty"`
	WalletAddress *string `json:"wallet_address,omitempty"`
}

// UserResponse is the public view of a user record.
type UserResponse struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastActive    time.Time `json:"last_active"`
}

func toUserResponse(u *storage.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		WalletAddress: u.WalletAddress,
		CreatedAt:     u.CreatedAt,
		LastActive:    u.LastActive,
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token for subsequent requests.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// AddPublicKeyRequest is the body of POST /users/{userID}/keys.
type AddPublicKeyRequest struct {
	PublicKey string `json:"public_key"`
}

// PublicKeysResponse is the body of GET /users/{userID}/keys.
type PublicKeysResponse struct {
	Keys []string `json:"keys"`
}

// CreateConnectionRequest is the body of POST /networks.
type CreateConnectionRequest struct {
	NetworkName  string  `json:"network_name"`
	IPAddress    string  `json:"ip_address,omitempty"`
	InitialScore float64 `json:"initial_score,omitempty"`
}

// UpdateConnectionRequest is the body of PUT /networks/{connectionID}.
// Absent fields are left unchanged; additional_time and additional_points
// accumulate onto the connection's running totals.
type UpdateConnectionRequest struct {
	Connected        *bool    `json:"connected,omitempty"`
	NetworkScore     *float64 `json:"network_score,omitempty"`
	AdditionalTime   *int64   `json:"additional_time,omitempty"`
	AdditionalPoints *float64 `json:"additional_points,omitempty"`
}

// UpdateStatusRequest is the body of PUT /networks/{connectionID}/status.
type UpdateStatusRequest struct {
	Connected     bool     `json:"connected"`
	StatusMessage string   `json:"status_message,omitempty"`
	Score         *float64 `json:"score,omitempty"`
}
