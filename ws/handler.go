package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/AireshBhat/nodedash/internal/uuid"
	"github.com/AireshBhat/nodedash/signature"
	"github.com/AireshBhat/nodedash/storage"
)

// StatusRecorder persists network status reported over an authenticated
// session. Failures are logged and never surface to the client.
type StatusRecorder interface {
	RecordNetworkStatus(ctx context.Context, userID int64, status string, score float64) error
}

// NewNetworkStatusRecorder returns a StatusRecorder that applies reported
// status to all of the user's active network connections.
func NewNetworkStatusRecorder(store storage.NetworkStore) StatusRecorder {
	return &networkStatusRecorder{store: store}
}

type networkStatusRecorder struct {
	store storage.NetworkStore
}

func (r *networkStatusRecorder) RecordNetworkStatus(ctx context.Context, userID int64, status string, score float64) error {
	conns, err := r.store.ActiveConnectionsByUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range conns {
		s := score
		if _, err := r.store.UpdateNetworkStatus(ctx, conns[i].ID, true, status, &s); err != nil {
			return err
		}
	}
	return nil
}

// Handler upgrades HTTP requests on the real-time channels and runs one
// Session per accepted socket. All channels share identical behavior; the
// channel name only appears in logs.
type Handler struct {
	verifier *signature.Service
	recorder StatusRecorder
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger used by the Handler and its sessions.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithStatusRecorder wires authenticated network_update frames to storage.
func WithStatusRecorder(recorder StatusRecorder) HandlerOption {
	return func(h *Handler) {
		h.recorder = recorder
	}
}

// NewHandler returns a Handler that authenticates sessions against the
// given verifier.
func NewHandler(verifier *signature.Service, cfg Config, opts ...HandlerOption) *Handler {
	h := &Handler{
		verifier: verifier,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement is delegated to the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the channel endpoints, mounted by the caller under /ws.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/dashboard", h.serveChannel("dashboard"))
	r.Get("/earnings", h.serveChannel("earnings"))
	r.Get("/referrals", h.serveChannel("referrals"))
	return r
}

func (h *Handler) serveChannel(channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			h.logger.Warn("websocket upgrade failed", "channel", channel, "error", err)
			return
		}
		session := newSession(uuid.New(), channel, clientIP(r), conn, h.verifier, h.recorder, h.cfg, h.logger)
		session.run(r.Context())
	}
}

// clientIP is a best-effort peer address for logs, preferring the first
// X-Forwarded-For hop when a proxy supplied one.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
