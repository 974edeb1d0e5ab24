package genesis

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AireshBhat/nodedash/storage"
)

// devKeySeed derives the deterministic development keys. The last byte is
// replaced with the key index, so the keys are stable across restarts and
// shared by every developer.
const devKeySeed = "dashboard_test_key_seed_123456\x00\x00"

// NumDevKeys is how many deterministic key pairs DevKeys generates.
const NumDevKeys = 10

// KeyPair is one deterministic development key pair with its hex encodings.
type KeyPair struct {
	Index      int    `json:"index"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
}

// DevKeys holds the deterministic ed25519 key pairs used to exercise the
// WebSocket authentication flow in development. Construct with NewDevKeys
// and inject it; it is never a process-wide singleton.
type DevKeys struct {
	pairs []KeyPair
	privs []ed25519.PrivateKey
}

// NewDevKeys generates the deterministic development key set.
func NewDevKeys() *DevKeys {
	d := &DevKeys{
		pairs: make([]KeyPair, 0, NumDevKeys),
		privs: make([]ed25519.PrivateKey, 0, NumDevKeys),
	}
	for i := 0; i < NumDevKeys; i++ {
		seed := []byte(devKeySeed)
		seed[31] = byte(i)
		priv := ed25519.NewKeyFromSeed(seed)
		pub := priv.Public().(ed25519.PublicKey)

		d.privs = append(d.privs, priv)
		d.pairs = append(d.pairs, KeyPair{
			Index:      i,
			Username:   fmt.Sprintf("test_user_%d", i+1),
			Email:      fmt.Sprintf("test_user_%d@example.com", i+1),
			PrivateKey: hex.EncodeToString(seed),
			PublicKey:  hex.EncodeToString(pub),
		})
	}
	return d
}

// All returns every key pair.
func (d *DevKeys) All() []KeyPair {
	out := make([]KeyPair, len(d.pairs))
	copy(out, d.pairs)
	return out
}

// ByIndex returns the key pair at the given index.
func (d *DevKeys) ByIndex(index int) (KeyPair, bool) {
	if index < 0 || index >= len(d.pairs) {
		return KeyPair{}, false
	}
	return d.pairs[index], true
}

// Sign signs a message with the key at the given index and returns the
// hex-encoded signature.
func (d *DevKeys) Sign(index int, message string) (string, error) {
	if index < 0 || index >= len(d.privs) {
		return "", fmt.Errorf("no dev key at index %d", index)
	}
	return hex.EncodeToString(ed25519.Sign(d.privs[index], []byte(message))), nil
}

// AuthEnvelope builds a ready-to-send WebSocket auth frame signed by the
// key at the given index, with a fresh timestamp and random nonce.
func (d *DevKeys) AuthEnvelope(index int) ([]byte, error) {
	pair, ok := d.ByIndex(index)
	if !ok {
		return nil, fmt.Errorf("no dev key at index %d", index)
	}

	nonceBytes := make([]byte, 8)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, err
	}
	nonce := hex.EncodeToString(nonceBytes)
	ts := time.Now().Unix()

	sig, err := d.Sign(index, fmt.Sprintf("%d:%s", ts, nonce))
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"type": "auth",
		"data": map[string]any{
			"public_key": pair.PublicKey,
			"timestamp":  ts,
			"nonce":      nonce,
			"signature":  sig,
		},
	})
}

// Register binds each dev key to the seeded user with the matching email.
// Keys whose user was not seeded are skipped. Safe to run repeatedly.
func (d *DevKeys) Register(ctx context.Context, store storage.UserStore, byEmail map[string]int64) error {
	for _, pair := range d.pairs {
		userID, ok := byEmail[pair.Email]
		if !ok {
			continue
		}
		if err := store.StorePublicKey(ctx, userID, pair.PublicKey); err != nil {
			return fmt.Errorf("registering dev key %d: %w", pair.Index, err)
		}
	}
	return nil
}
