package ws

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validAuthPayload(now time.Time) AuthPayload {
	return AuthPayload{
		PublicKey: strings.Repeat("ab", 32),
		Timestamp: now.Unix(),
		Nonce:     "nonce-12345",
		Signature: strings.Repeat("cd", 64),
	}
}

func TestAuthPayloadValidate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name    string
		mutate  func(*AuthPayload)
		wantErr string
	}{
		{name: "valid 64-char key", mutate: func(*AuthPayload) {}},
		{
			name:   "valid 128-char key",
			mutate: func(p *AuthPayload) { p.PublicKey = strings.Repeat("ab", 64) },
		},
		{
			name:    "key wrong length",
			mutate:  func(p *AuthPayload) { p.PublicKey = "abcd" },
			wantErr: "public key",
		},
		{
			name:    "key not hex",
			mutate:  func(p *AuthPayload) { p.PublicKey = strings.Repeat("gh", 32) },
			wantErr: "not valid hex",
		},
		{
			name:   "timestamp 60s in the future is allowed",
			mutate: func(p *AuthPayload) { p.Timestamp = now.Unix() + 60 },
		},
		{
			name:    "timestamp 61s in the future",
			mutate:  func(p *AuthPayload) { p.Timestamp = now.Unix() + 61 },
			wantErr: "future",
		},
		{
			name:   "timestamp 300s old is allowed",
			mutate: func(p *AuthPayload) { p.Timestamp = now.Unix() - 300 },
		},
		{
			name:    "timestamp 301s old",
			mutate:  func(p *AuthPayload) { p.Timestamp = now.Unix() - 301 },
			wantErr: "too old",
		},
		{
			name:    "nonce too short",
			mutate:  func(p *AuthPayload) { p.Nonce = "short" },
			wantErr: "nonce",
		},
		{
			name:    "nonce too long",
			mutate:  func(p *AuthPayload) { p.Nonce = strings.Repeat("n", 65) },
			wantErr: "nonce",
		},
		{
			name:    "signature wrong length",
			mutate:  func(p *AuthPayload) { p.Signature = strings.Repeat("cd", 32) },
			wantErr: "signature",
		},
		{
			name:    "signature not hex",
			mutate:  func(p *AuthPayload) { p.Signature = strings.Repeat("xy", 64) },
			wantErr: "signature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validAuthPayload(now)
			tt.mutate(&payload)
			err := payload.Validate(now)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestSignedMessage(t *testing.T) {
	payload := AuthPayload{Timestamp: 1_700_000_000, Nonce: "my-nonce-1"}
	assert.Equal(t, "1700000000:my-nonce-1", payload.SignedMessage())
}
