// Package signature verifies ed25519 signatures presented by dashboard
// clients and manages the public keys registered to user accounts.
//
// Keys and signatures travel as lowercase hex strings. A public key decodes
// to the 32-byte ed25519 key, a signature to the 64-byte ed25519 signature.
package signature

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AireshBhat/nodedash/storage"
)

var (
	// ErrInvalidPublicKey means the public key is not valid hex or does not
	// decode to an ed25519 public key.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidSignature means the signature is not valid hex or does not
	// decode to an ed25519 signature.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrVerificationFailed means the signature does not verify against the
	// key and message.
	ErrVerificationFailed = errors.New("signature verification failed")

	// ErrUnknownKey means no user account has the public key registered.
	ErrUnknownKey = errors.New("unknown public key")
)

// DecodePublicKey decodes a hex-encoded ed25519 public key.
func DecodePublicKey(publicKeyHex string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPublicKey, len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// Verify checks a hex-encoded ed25519 signature over message against a
// hex-encoded public key.
func Verify(publicKeyHex, message, signatureHex string) error {
	pub, err := DecodePublicKey(publicKeyHex)
	if err != nil {
		return err
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSignature, len(sig), ed25519.SignatureSize)
	}
	if !ed25519.Verify(pub, []byte(message), sig) {
		return ErrVerificationFailed
	}
	return nil
}

// Service resolves verified public keys to user accounts and manages key
// registration.
type Service struct {
	store  storage.UserStore
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used by the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService returns a Service backed by the given user store.
func NewService(store storage.UserStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate verifies the signature and resolves the public key to its
// owning user. The key's last-used timestamp is updated best-effort; a
// failure there never fails the authentication.
func (s *Service) Authenticate(ctx context.Context, publicKeyHex, message, signatureHex string) (*storage.User, error) {
	if err := Verify(publicKeyHex, message, signatureHex); err != nil {
		return nil, err
	}
	user, err := s.store.FindUserByPublicKey(ctx, publicKeyHex)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnknownKey
	}
	if err != nil {
		return nil, fmt.Errorf("looking up public key: %w", err)
	}
	if err := s.store.TouchPublicKey(ctx, user.ID, publicKeyHex); err != nil {
		s.logger.WarnContext(ctx, "could not update key last-used timestamp",
			"user_id", user.ID, "error", err)
	}
	return user, nil
}

// RegisterKey registers a public key to a user after validating it decodes
// to an ed25519 key. Registering a key the user already owns is a no-op.
func (s *Service) RegisterKey(ctx context.Context, userID int64, publicKeyHex string) error {
	if _, err := DecodePublicKey(publicKeyHex); err != nil {
		return err
	}
	return s.store.StorePublicKey(ctx, userID, publicKeyHex)
}

// RevokeKey removes a public key from a user. It reports whether a key was
// actually removed.
func (s *Service) RevokeKey(ctx context.Context, userID int64, publicKeyHex string) (bool, error) {
	return s.store.RevokePublicKey(ctx, userID, publicKeyHex)
}

// UserKeys lists the public keys registered to a user.
func (s *Service) UserKeys(ctx context.Context, userID int64) ([]string, error) {
	return s.store.PublicKeysForUser(ctx, userID)
}
