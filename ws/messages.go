package ws

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound message types.
const (
	TypeAuth             = "auth"
	TypeHeartbeat        = "heartbeat"
	TypeConnectionUpdate = "connection_update"
	TypeNetworkUpdate    = "network_update"
	TypeEarningsUpdate   = "earnings_update"
	TypeError            = "error"
	TypeData             = "data"
)

// Outbound message types.
const (
	TypeConnectionEstablished = "connection_established"
	TypeAuthSuccess           = "auth_success"
	TypeHeartbeatAck          = "heartbeat_ack"
	TypeConnectionUpdateAck   = "connection_update_ack"
	TypeNetworkUpdateAck      = "network_update_ack"
	TypeInfo                  = "info"
)

// Error codes carried by outbound error frames.
const (
	CodeAuthRequired   = "auth_required"
	CodeInvalidMessage = "invalid_message"
	CodeAuthFailed     = "auth_failed"
	CodeUnknownKey     = "unknown_key"
	CodeAuthTimeout    = "auth_timeout"
	CodeUnauthorized   = "unauthorized"
)

// Envelope is the tagged wrapper around every inbound JSON frame. The data
// field's shape depends on the type discriminator.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthPayload is the authentication attempt carried by an auth frame.
type AuthPayload struct {
	PublicKey string `json:"public_key"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// Timestamp window accepted during shape validation.
const (
	maxFutureSkew = 60 * time.Second
	maxAge        = 300 * time.Second
)

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Validate checks the message shape before any cryptographic work: key and
// signature hex encodings and lengths, the nonce length, and the timestamp
// window bounding both clock skew and the replay horizon.
func (p *AuthPayload) Validate(now time.Time) error {
	if n := len(p.PublicKey); n != 64 && n != 128 {
		return fmt.Errorf("public key must be 64 or 128 hex characters, got %d", n)
	}
	if !isHex(p.PublicKey) {
		return fmt.Errorf("public key is not valid hex")
	}
	age := now.Unix() - p.Timestamp
	if age < -int64(maxFutureSkew.Seconds()) {
		return fmt.Errorf("timestamp is too far in the future")
	}
	if age > int64(maxAge.Seconds()) {
		return fmt.Errorf("timestamp is too old")
	}
	if n := len(p.Nonce); n < 8 || n > 64 {
		return fmt.Errorf("nonce must be between 8 and 64 characters, got %d", n)
	}
	if n := len(p.Signature); n != 128 {
		return fmt.Errorf("signature must be 128 hex characters, got %d", n)
	}
	if !isHex(p.Signature) {
		return fmt.Errorf("signature is not valid hex")
	}
	return nil
}

// SignedMessage returns the exact payload the client must sign:
// the decimal timestamp and the nonce joined by a colon.
func (p *AuthPayload) SignedMessage() string {
	return fmt.Sprintf("%d:%s", p.Timestamp, p.Nonce)
}

// ConnectionUpdatePayload reports a client-side connection state change.
type ConnectionUpdatePayload struct {
	Connected bool `json:"connected"`
}

// NetworkUpdatePayload reports a client-side network status change.
type NetworkUpdatePayload struct {
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

// EarningsUpdatePayload reports client-side earnings activity.
type EarningsUpdatePayload struct {
	Amount float64 `json:"amount"`
	Source string  `json:"source"`
}

type connectionEstablishedFrame struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	AuthRequired bool   `json:"auth_required"`
	Message      string `json:"message"`
}

type authSuccessFrame struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id"`
	SessionID string `json:"session_id"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type heartbeatAckFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type connectionUpdateAckFrame struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
}

type networkUpdateAckFrame struct {
	Type   string  `json:"type"`
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

type infoFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func connectionEstablished(sessionID string) connectionEstablishedFrame {
	return connectionEstablishedFrame{
		Type:         TypeConnectionEstablished,
		SessionID:    sessionID,
		AuthRequired: true,
		Message:      "authentication required: sign \"{timestamp}:{nonce}\" with a registered ed25519 key",
	}
}

func authSuccess(userID int64, sessionID string) authSuccessFrame {
	return authSuccessFrame{Type: TypeAuthSuccess, UserID: userID, SessionID: sessionID}
}

func errorMessage(code, message string) errorFrame {
	return errorFrame{Type: TypeError, Code: code, Message: message}
}

func heartbeatAck(now time.Time) heartbeatAckFrame {
	return heartbeatAckFrame{Type: TypeHeartbeatAck, Timestamp: now.Unix()}
}

func connectionUpdateAck(connected bool) connectionUpdateAckFrame {
	return connectionUpdateAckFrame{Type: TypeConnectionUpdateAck, Connected: connected}
}

func networkUpdateAck(status string, score float64) networkUpdateAckFrame {
	return networkUpdateAckFrame{Type: TypeNetworkUpdateAck, Status: status, Score: score}
}

func info(message string) infoFrame {
	return infoFrame{Type: TypeInfo, Message: message}
}
