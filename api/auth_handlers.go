package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AireshBhat/nodedash/internal/util"
	"github.com/AireshBhat/nodedash/storage"
)

const (
	// minPasswordLen is the minimum password length for registration.
	minPasswordLen = 10
	saltLen        = 16
)

// RegisterUser handles POST /users.
func (a *API) RegisterUser(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RegisterUserRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		return
	}

	user, err := a.users.CreateUser(r.Context(), storage.CreateUser{
		Email:         req.Email,
		Username:      req.Username,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	salt, err := util.NewSalt(saltLen)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create credentials")
		return
	}
	hash := util.HashPassword(req.Password, salt, util.DefaultArgon2idParams())
	if err := a.users.StoreCredentials(r.Context(), user.ID, hash, salt); err != nil {
		// Roll the account back rather than leaving it passwordless.
		_, _ = a.users.DeleteUser(r.Context(), user.ID)
		writeError(w, http.StatusInternalServerError, "could not store credentials")
		return
	}

	a.audit.logEvent(AuditRegister, r, user.ID)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	clientIP := a.extractClientIP(r)
	if blocked, retryAfter := a.ipLimiter.check(clientIP); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "ip rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter := a.accountLimiter.check(req.Email); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "account rate limited")
		writeRateLimited(w, retryAfter)
		return
	}

	recordFailure := func(reason string) {
		a.ipLimiter.recordFailure(clientIP)
		a.accountLimiter.recordFailure(req.Email)
		a.audit.logFailure(AuditLoginFailure, r, reason)
		// A uniform error hides whether the account exists.
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	}

	user, err := a.users.FindUserByEmail(r.Context(), req.Email)
	if errors.Is(err, storage.ErrNotFound) {
		recordFailure("unknown account")
		return
	}
	if err != nil {
		mapError(w, err)
		return
	}

	creds, err := a.users.Credentials(r.Context(), user.ID)
	if err != nil {
		recordFailure("no credentials")
		return
	}
	if !util.VerifyPassword(req.Password, creds.Salt, util.DefaultArgon2idParams(), creds.PasswordHash) {
		recordFailure("bad password")
		return
	}

	session, err := a.users.CreateSession(r.Context(), user.ID, clientIP, r.UserAgent(), a.jwtExpiration)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	token, err := a.issueToken(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	a.ipLimiter.reset(clientIP)
	a.accountLimiter.reset(req.Email)
	if err := a.users.TouchUser(r.Context(), user.ID); err != nil {
		a.audit.logger.WarnContext(r.Context(), "could not update last active", "user_id", user.ID, "error", err)
	}

	a.audit.logEvent(AuditLoginSuccess, r, user.ID)
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      toUserResponse(user),
	})
}

// Logout handles POST /auth/logout.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFrom(r.Context())
	if _, err := a.users.DeleteSession(r.Context(), sessionID); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditLogout, r, userIDFrom(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds()) + 1
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, http.StatusTooManyRequests, "too many failed attempts, try again later")
}
