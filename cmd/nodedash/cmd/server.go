package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/AireshBhat/nodedash/api"
	"github.com/AireshBhat/nodedash/config"
	"github.com/AireshBhat/nodedash/genesis"
	"github.com/AireshBhat/nodedash/signature"
	"github.com/AireshBhat/nodedash/storage"
	bboltstorage "github.com/AireshBhat/nodedash/storage/bbolt"
	"github.com/AireshBhat/nodedash/storage/memory"
	"github.com/AireshBhat/nodedash/storage/postgres"
	"github.com/AireshBhat/nodedash/ws"
)

var (
	port        int
	databaseURL string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the dashboard backend server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if port != 0 {
			cfg.ServerPort = port
		}
		if databaseURL != "" {
			cfg.DatabaseURL = databaseURL
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.LogLevel),
		}))
		slog.SetDefault(logger)

		users, networks, closeStores, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		verifier := signature.NewService(users, signature.WithLogger(logger))

		var devKeys *genesis.DevKeys
		if cfg.IsDevelopment() {
			devKeys = genesis.NewDevKeys()
		}
		if cfg.SeedOnStart {
			seeder := genesis.NewSeeder(users, networks, logger)
			if err := seeder.Seed(cmd.Context(), devKeys); err != nil {
				return fmt.Errorf("seeding storage: %w", err)
			}
		}

		apiOpts := []api.Option{
			api.WithLogger(logger),
			api.WithJWT(cfg.JWTSecret, cfg.JWTExpiration),
		}
		if devKeys != nil {
			apiOpts = append(apiOpts, api.WithDevKeys(devKeys))
		}
		a := api.New(users, networks, verifier, apiOpts...)

		wsHandler := ws.NewHandler(verifier, ws.Config{
			HeartbeatInterval: cfg.HeartbeatInterval,
			ClientTimeout:     cfg.ClientTimeout,
			AuthTimeout:       cfg.AuthTimeout,
			CloseDelay:        cfg.CloseDelay,
		},
			ws.WithLogger(logger),
			ws.WithStatusRecorder(ws.NewNetworkStatusRecorder(networks)),
		)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())
		r.Mount("/ws", wsHandler.Routes())

		// No WriteTimeout: WebSocket connections are long-lived and manage
		// their own write deadlines.
		server := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		logger.Info("server started",
			"addr", cfg.Addr(),
			"environment", cfg.Environment,
			"database", describeBackend(cfg.DatabaseURL))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// openStores selects the storage backend from the database URL: empty for
// in-memory, postgres:// for PostgreSQL, anything else is a bbolt file path.
func openStores(ctx context.Context, cfg *config.Config) (storage.UserStore, storage.NetworkStore, func(), error) {
	switch {
	case cfg.DatabaseURL == "":
		return memory.NewUserStore(), memory.NewNetworkStore(), func() {}, nil

	case strings.HasPrefix(cfg.DatabaseURL, "postgres://"),
		strings.HasPrefix(cfg.DatabaseURL, "postgresql://"):
		store, err := postgres.NewStoreFromDSN(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		return store, store, store.Close, nil

	default:
		path := strings.TrimPrefix(cfg.DatabaseURL, "file:")
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, nil, nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
		store, err := bboltstorage.NewStoreFromFile(path, nil)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening bbolt storage: %w", err)
		}
		return store, store, func() { _ = store.Close() }, nil
	}
}

func describeBackend(databaseURL string) string {
	switch {
	case databaseURL == "":
		return "memory"
	case strings.HasPrefix(databaseURL, "postgres"):
		return "postgres"
	default:
		return "bbolt"
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides SERVER_PORT)")
	serverCmd.Flags().StringVar(&databaseURL, "database-url", "", "Storage backend (overrides DATABASE_URL)")
}
