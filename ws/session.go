// Package ws implements the real-time dashboard channels: per-connection
// sessions that authenticate clients with ed25519-signed challenges and
// enforce heartbeat liveness.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AireshBhat/nodedash/signature"
)

// State is a session's position in the authentication state machine. It
// only moves forward; Authenticated and Failed are terminal.
type State int

const (
	StateNotAuthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotAuthenticated:
		return "not_authenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds the timing discipline for a session. Zero values fall back
// to defaults.
type Config struct {
	// HeartbeatInterval is how often the server probes liveness.
	HeartbeatInterval time.Duration
	// ClientTimeout closes the connection when no ping, pong, or heartbeat
	// frame arrived for this long.
	ClientTimeout time.Duration
	// AuthTimeout is how long a session may remain unauthenticated.
	AuthTimeout time.Duration
	// CloseDelay is the grace period between a failure notice and the
	// forced close, giving the client time to read the error.
	CloseDelay time.Duration
	// WriteWait bounds a single write to the peer.
	WriteWait time.Duration
	// ReadLimit caps the size of an inbound frame in bytes.
	ReadLimit int64
	// SendBuffer is the outbound frame queue length; a session that cannot
	// drain it is force-closed as a slow consumer.
	SendBuffer int
}

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultClientTimeout     = 120 * time.Second
	defaultAuthTimeout       = 30 * time.Second
	defaultCloseDelay        = 2 * time.Second
	defaultWriteWait         = 10 * time.Second
	defaultReadLimit         = 8 << 10
	defaultSendBuffer        = 256
)

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = defaultClientTimeout
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = defaultAuthTimeout
	}
	if c.CloseDelay <= 0 {
		c.CloseDelay = defaultCloseDelay
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	return c
}

// Session owns one live WebSocket connection. Inbound frames are handled
// sequentially by the read loop; the write loop is the only writer of data
// frames. Timer callbacks and the verification goroutine re-check the state
// under the mutex before acting, so a timer firing late or a verification
// resolving after an auth timeout becomes a no-op.
type Session struct {
	id          string
	channel     string
	clientIP    string
	connectedAt time.Time

	conn     *websocket.Conn
	verifier *signature.Service
	recorder StatusRecorder
	cfg      Config
	logger   *slog.Logger

	mu            sync.Mutex
	state         State
	userID        int64
	publicKey     string
	lastHeartbeat time.Time

	authTimer *time.Timer
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id, channel, clientIP string, conn *websocket.Conn, verifier *signature.Service, recorder StatusRecorder, cfg Config, logger *slog.Logger) *Session {
	cfg = cfg.withDefaults()
	now := time.Now()
	return &Session{
		id:            id,
		channel:       channel,
		clientIP:      clientIP,
		connectedAt:   now,
		conn:          conn,
		verifier:      verifier,
		recorder:      recorder,
		cfg:           cfg,
		logger:        logger.With("session_id", id, "channel", channel),
		state:         StateNotAuthenticated,
		lastHeartbeat: now,
		send:          make(chan []byte, cfg.SendBuffer),
		done:          make(chan struct{}),
	}
}

// ID returns the session identifier used in acks and logs.
func (s *Session) ID() string { return s.id }

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the authenticated user id, or zero before authentication.
func (s *Session) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// run drives the session until the connection closes. It blocks in the
// read loop; the write loop runs alongside it.
func (s *Session) run(ctx context.Context) {
	defer s.forceClose()

	s.logger.Info("session connected", "client_ip", s.clientIP)

	go s.writeLoop()
	s.sendFrame(connectionEstablished(s.id))
	s.authTimer = time.AfterFunc(s.cfg.AuthTimeout, s.onAuthDeadline)

	s.readLoop(ctx)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastHeartbeat = time.Now()
	s.mu.Unlock()
}

func (s *Session) sinceHeartbeat() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastHeartbeat)
}

func (s *Session) authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated
}

// sendFrame queues an outbound frame. A full queue means the client has
// stopped draining and the session is force-closed.
func (s *Session) sendFrame(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("could not encode outbound frame", "error", err)
		return
	}
	s.sendRaw(data)
}

func (s *Session) sendRaw(data []byte) {
	select {
	case s.send <- data:
	case <-s.done:
	default:
		s.logger.Warn("outbound queue full, closing slow consumer")
		s.forceClose()
	}
}

// forceClose terminates the connection. Safe to call from any goroutine
// and any number of times; only the first call acts.
func (s *Session) forceClose() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
		s.logger.Info("session closed",
			"state", s.State().String(),
			"duration", time.Since(s.connectedAt).Round(time.Millisecond))
	})
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.forceClose()
				return
			}
		case <-ticker.C:
			if s.sinceHeartbeat() > s.cfg.ClientTimeout {
				s.logger.Warn("client heartbeat timeout, disconnecting")
				s.forceClose()
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.forceClose()
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteWait))
			return
		}
	}
}

func (s *Session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(s.cfg.ReadLimit)
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})
	s.conn.SetPingHandler(func(appData string) error {
		s.touch()
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(s.cfg.WriteWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			// Transport-level errors are fatal; no grace period.
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("read error, disconnecting", "error", err)
			}
			return
		}
		switch messageType {
		case websocket.TextMessage:
			s.handleText(ctx, data)
		case websocket.BinaryMessage:
			if !s.authenticated() {
				s.sendFrame(errorMessage(CodeUnauthorized, "binary frames are not accepted before authentication"))
			}
		}
	}
}

func (s *Session) handleText(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		s.sendFrame(errorMessage(CodeInvalidMessage, "message is not valid JSON with a type field"))
		return
	}

	switch env.Type {
	case TypeAuth:
		s.handleAuth(ctx, env.Data)
	case TypeHeartbeat:
		if !s.requireAuth() {
			return
		}
		s.touch()
		s.sendFrame(heartbeatAck(time.Now()))
	case TypeConnectionUpdate:
		if !s.requireAuth() {
			return
		}
		var payload ConnectionUpdatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.sendFrame(errorMessage(CodeInvalidMessage, "malformed connection_update payload"))
			return
		}
		s.sendFrame(connectionUpdateAck(payload.Connected))
	case TypeNetworkUpdate:
		if !s.requireAuth() {
			return
		}
		var payload NetworkUpdatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.sendFrame(errorMessage(CodeInvalidMessage, "malformed network_update payload"))
			return
		}
		s.recordStatus(ctx, payload)
		s.sendFrame(networkUpdateAck(payload.Status, payload.Score))
	case TypeEarningsUpdate, TypeError, TypeData:
		if !s.requireAuth() {
			return
		}
		// Well-formed but unhandled application types are echoed back.
		s.sendRaw(data)
	default:
		s.sendFrame(errorMessage(CodeInvalidMessage, "unsupported message type"))
	}
}

func (s *Session) requireAuth() bool {
	if s.authenticated() {
		return true
	}
	s.sendFrame(errorMessage(CodeAuthRequired, "authenticate before sending application messages"))
	return false
}

func (s *Session) handleAuth(ctx context.Context, raw json.RawMessage) {
	var payload AuthPayload
	if len(raw) == 0 || json.Unmarshal(raw, &payload) != nil {
		s.sendFrame(errorMessage(CodeInvalidMessage, "malformed auth payload"))
		return
	}

	s.mu.Lock()
	switch s.state {
	case StateAuthenticated:
		s.mu.Unlock()
		s.sendFrame(info("already authenticated"))
		return
	case StateAuthenticating:
		s.mu.Unlock()
		s.sendFrame(errorMessage(CodeAuthFailed, "authentication already in progress"))
		return
	case StateFailed:
		// Inside the grace window before the scheduled close.
		s.mu.Unlock()
		s.sendFrame(errorMessage(CodeAuthFailed, "authentication failed, connection is closing"))
		return
	}

	if err := payload.Validate(time.Now()); err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		s.logger.Warn("auth message rejected", "reason", err.Error())
		s.sendFrame(errorMessage(CodeAuthFailed, err.Error()))
		s.scheduleClose()
		return
	}

	s.state = StateAuthenticating
	s.mu.Unlock()

	// Verification does directory I/O; run it off the read loop so the
	// session stays responsive while it is in flight.
	go s.verify(ctx, payload)
}

func (s *Session) verify(ctx context.Context, payload AuthPayload) {
	user, err := s.verifier.Authenticate(ctx, payload.PublicKey, payload.SignedMessage(), payload.Signature)

	s.mu.Lock()
	if s.state != StateAuthenticating {
		// The auth deadline or a close beat us; a late result must not
		// resurrect the session.
		s.mu.Unlock()
		s.logger.Debug("discarding late verification result")
		return
	}
	if err != nil {
		s.state = StateFailed
		s.mu.Unlock()

		code, message := CodeAuthFailed, "signature verification failed"
		switch {
		case errors.Is(err, signature.ErrUnknownKey):
			code, message = CodeUnknownKey, "public key is not registered to any user"
			s.logger.Warn("auth failed", "reason", "unknown key")
		case errors.Is(err, signature.ErrInvalidPublicKey),
			errors.Is(err, signature.ErrInvalidSignature),
			errors.Is(err, signature.ErrVerificationFailed):
			s.logger.Warn("auth failed", "reason", err.Error())
		default:
			// Directory failure: fail closed, logged as internal.
			s.logger.Error("auth directory lookup failed", "error", err)
		}
		s.sendFrame(errorMessage(code, message))
		s.scheduleClose()
		return
	}

	s.state = StateAuthenticated
	s.userID = user.ID
	s.publicKey = payload.PublicKey
	s.mu.Unlock()

	s.authTimer.Stop()
	s.logger.Info("session authenticated", "user_id", user.ID)
	s.sendFrame(authSuccess(user.ID, s.id))
}

func (s *Session) onAuthDeadline() {
	s.mu.Lock()
	if s.state == StateAuthenticated || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.mu.Unlock()

	s.logger.Warn("authentication deadline elapsed")
	s.sendFrame(errorMessage(CodeAuthTimeout, "authentication not completed in time"))
	s.scheduleClose()
}

// scheduleClose arms the grace-period close. Once armed it always fires;
// no client activity cancels it.
func (s *Session) scheduleClose() {
	time.AfterFunc(s.cfg.CloseDelay, s.forceClose)
}

func (s *Session) recordStatus(ctx context.Context, payload NetworkUpdatePayload) {
	if s.recorder == nil {
		return
	}
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if err := s.recorder.RecordNetworkStatus(ctx, userID, payload.Status, payload.Score); err != nil {
		s.logger.Warn("could not persist network status", "error", err)
	}
}
