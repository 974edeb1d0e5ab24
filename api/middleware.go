package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	contextKeyUserID    contextKey = "user_id"
	contextKeySessionID contextKey = "session_id"
)

// issueToken signs a JWT bound to the user and the server-side session
// record. Logout deletes the session, which invalidates the token before
// its expiry.
func (a *API) issueToken(userID int64, sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"sid": sessionID,
		"iat": time.Now().Unix(),
		"exp": expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *API) parseToken(tokenString string) (userID int64, sessionID string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return 0, "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", errors.New("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, "", err
	}
	userID, err = strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid subject: %w", err)
	}
	sessionID, _ = claims["sid"].(string)
	if sessionID == "" {
		return 0, "", errors.New("missing session id")
	}
	return userID, sessionID, nil
}

// AuthMiddleware authenticates requests with a bearer token and verifies
// the backing server-side session still exists and has not expired.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, sessionID, err := a.parseToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		session, err := a.users.FindSessionByID(r.Context(), sessionID)
		if err != nil || session.UserID != userID {
			writeError(w, http.StatusUnauthorized, "session not found")
			return
		}
		if time.Now().After(session.ExpiresAt) {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
		ctx = context.WithValue(ctx, contextKeySessionID, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(contextKeyUserID).(int64)
	return id
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeySessionID).(string)
	return id
}

// requireSelf parses the {userID} route parameter and checks it matches
// the authenticated user. Returns 0 with a written response otherwise.
func (a *API) requireSelf(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	pathID, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	if pathID != userIDFrom(r.Context()) {
		writeError(w, http.StatusForbidden, "cannot act on another user")
		return 0, false
	}
	return pathID, true
}

// extractClientIP is a best-effort peer address, preferring the first
// X-Forwarded-For hop when a proxy supplied one.
func (a *API) extractClientIP(r *http.Request) string {
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
