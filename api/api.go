// Package api implements the REST surface: account registration and login,
// public key management, and network connection queries.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/AireshBhat/nodedash/genesis"
	"github.com/AireshBhat/nodedash/signature"
	"github.com/AireshBhat/nodedash/storage"
)

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the REST handlers.
type API struct {
	users    storage.UserStore
	networks storage.NetworkStore
	keys     *signature.Service

	jwtSecret     []byte
	jwtExpiration time.Duration

	devKeys *genesis.DevKeys

	accountLimiter *loginRateLimiter
	ipLimiter      *loginRateLimiter
	audit          *auditLogger
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events. If not set, a
// default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithJWT sets the signing secret and lifetime for login tokens.
func WithJWT(secret string, expiration time.Duration) Option {
	return func(a *API) {
		a.jwtSecret = []byte(secret)
		if expiration > 0 {
			a.jwtExpiration = expiration
		}
	}
}

// WithDevKeys exposes the deterministic test keys under /dev. Development
// deployments only.
func WithDevKeys(keys *genesis.DevKeys) Option {
	return func(a *API) {
		a.devKeys = keys
	}
}

// New creates a new API instance.
func New(users storage.UserStore, networks storage.NetworkStore, keys *signature.Service, opts ...Option) *API {
	a := &API{
		users:          users,
		networks:       networks,
		keys:           keys,
		jwtExpiration:  time.Hour,
		accountLimiter: newLoginRateLimiter(),
		ipLimiter:      newLoginRateLimiter(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auth/login", a.Login)
	r.With(a.AuthMiddleware).Post("/auth/logout", a.Logout)

	r.Post("/users", a.RegisterUser)
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/", a.GetUser)
		r.Put("/", a.UpdateUser)
		r.Delete("/", a.DeleteUser)
		r.Get("/keys", a.ListPublicKeys)
		r.Post("/keys", a.AddPublicKey)
		r.Delete("/keys/{key}", a.RevokePublicKey)
	})

	r.Route("/networks", func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/", a.ListConnections)
		r.Post("/", a.CreateConnection)
		r.Get("/stats", a.NetworkStatistics)
		r.Route("/{connectionID}", func(r chi.Router) {
			r.Get("/", a.GetConnection)
			r.Put("/", a.UpdateConnection)
			r.Delete("/", a.DeleteConnection)
			r.Get("/status", a.GetNetworkStatus)
			r.Put("/status", a.UpdateNetworkStatus)
		})
	})

	if a.devKeys != nil {
		r.Route("/dev", func(r chi.Router) {
			r.Get("/test-keys", a.ListTestKeys)
			r.Get("/test-keys/{index}", a.GetTestKey)
			r.Get("/test-auth-message/{index}", a.GetTestAuthMessage)
		})
	}

	return r
}
