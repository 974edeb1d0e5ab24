// Package genesis bootstraps development deployments: it seeds storage
// with a small embedded dataset and provides deterministic ed25519 test
// keys. Nothing here is used in production serving paths.
package genesis

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AireshBhat/nodedash/internal/util"
	"github.com/AireshBhat/nodedash/storage"
)

//go:embed genesis_data.json
var genesisJSON []byte

// Data is the embedded development dataset.
type Data struct {
	Users              []SeedUser       `json:"users"`
	NetworkConnections []SeedConnection `json:"network_connections"`
}

// SeedUser describes a development user account. The password is hashed
// at seed time; it is plaintext here only because this data never leaves
// development.
type SeedUser struct {
	Email         string `json:"email"`
	Username      string `json:"username"`
	WalletAddress string `json:"wallet_address"`
	Password      string `json:"password"`
}

// SeedConnection describes a development network connection, tied to its
// owner by email so ids stay backend-assigned.
type SeedConnection struct {
	UserEmail    string  `json:"user_email"`
	NetworkName  string  `json:"network_name"`
	IPAddress    string  `json:"ip_address"`
	NetworkScore float64 `json:"network_score"`
}

// LoadData parses the embedded dataset.
func LoadData() (*Data, error) {
	var data Data
	if err := json.Unmarshal(genesisJSON, &data); err != nil {
		return nil, fmt.Errorf("parsing genesis data: %w", err)
	}
	return &data, nil
}

// Seeder loads the embedded dataset and the deterministic dev keys into
// storage. Construct one explicitly and inject it where bootstrap needs
// it; there is no process-wide instance.
type Seeder struct {
	users    storage.UserStore
	networks storage.NetworkStore
	logger   *slog.Logger
}

// NewSeeder returns a Seeder writing to the given stores.
func NewSeeder(users storage.UserStore, networks storage.NetworkStore, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{users: users, networks: networks, logger: logger}
}

// Seed loads the dataset, creates any missing users with hashed
// credentials, their network connections, and registers the dev test keys.
// It is idempotent: existing users are left untouched.
func (s *Seeder) Seed(ctx context.Context, keys *DevKeys) error {
	data, err := LoadData()
	if err != nil {
		return err
	}

	byEmail := make(map[string]int64, len(data.Users))
	created := 0
	for _, su := range data.Users {
		existing, err := s.users.FindUserByEmail(ctx, su.Email)
		if err == nil {
			byEmail[su.Email] = existing.ID
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("looking up seed user %s: %w", su.Email, err)
		}

		user, err := s.users.CreateUser(ctx, storage.CreateUser{
			Email:         su.Email,
			Username:      su.Username,
			WalletAddress: su.WalletAddress,
		})
		if err != nil {
			return fmt.Errorf("creating seed user %s: %w", su.Email, err)
		}
		byEmail[su.Email] = user.ID
		created++

		salt, err := util.NewSalt(16)
		if err != nil {
			return err
		}
		hash := util.HashPassword(su.Password, salt, util.DefaultArgon2idParams())
		if err := s.users.StoreCredentials(ctx, user.ID, hash, salt); err != nil {
			return fmt.Errorf("storing seed credentials for %s: %w", su.Email, err)
		}

		for _, sc := range data.NetworkConnections {
			if sc.UserEmail != su.Email {
				continue
			}
			if _, err := s.networks.CreateConnection(ctx, storage.CreateNetworkConnection{
				UserID:       user.ID,
				NetworkName:  sc.NetworkName,
				IPAddress:    sc.IPAddress,
				InitialScore: sc.NetworkScore,
			}); err != nil {
				return fmt.Errorf("creating seed connection %s/%s: %w", su.Email, sc.NetworkName, err)
			}
		}
	}

	if keys != nil {
		if err := keys.Register(ctx, s.users, byEmail); err != nil {
			return err
		}
	}

	s.logger.Info("genesis seed complete", "users_created", created, "users_total", len(data.Users))
	return nil
}
