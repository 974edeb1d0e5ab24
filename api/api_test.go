package api

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AireshBhat/nodedash/genesis"
	"github.com/AireshBhat/nodedash/signature"
	"github.com/AireshBhat/nodedash/storage/memory"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	users := memory.NewUserStore()
	networks := memory.NewNetworkStore()
	opts = append([]Option{WithJWT("test-secret", time.Hour)}, opts...)
	a := New(users, networks, signature.NewService(users), opts...)
	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)
	return server
}

// doJSON issues a request with an optional JSON body and bearer token, and
// decodes the JSON response into out when out is non-nil.
func doJSON(t *testing.T, method, url string, body any, token string, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func registerAndLogin(t *testing.T, baseURL, email string) (UserResponse, string) {
	t.Helper()
	var user UserResponse
	resp := doJSON(t, http.MethodPost, baseURL+"/users", RegisterUserRequest{
		Email:    email,
		Username: "user-" + email,
		Password: "correct horse battery",
	}, "", &user)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var login LoginResponse
	resp = doJSON(t, http.MethodPost, baseURL+"/auth/login", LoginRequest{
		Email:    email,
		Password: "correct horse battery",
	}, "", &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, login.Token)
	return user, login.Token
}

func TestRegisterAndLoginFlow(t *testing.T) {
	server := newTestServer(t)

	var created UserResponse
	resp := doJSON(t, http.MethodPost, server.URL+"/users", RegisterUserRequest{
		Email:    "Alice@Example.com",
		Username: "alice",
		Password: "correct horse battery",
	}, "", &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "alice@example.com", created.Email)

	// Duplicate email.
	resp = doJSON(t, http.MethodPost, server.URL+"/users", RegisterUserRequest{
		Email:    "alice@example.com",
		Username: "alice2",
		Password: "correct horse battery",
	}, "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Password too short.
	resp = doJSON(t, http.MethodPost, server.URL+"/users", RegisterUserRequest{
		Email:    "bob@example.com",
		Username: "bob",
		Password: "short",
	}, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Wrong password.
	resp = doJSON(t, http.MethodPost, server.URL+"/auth/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "not the password",
	}, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var login LoginResponse
	resp = doJSON(t, http.MethodPost, server.URL+"/auth/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	}, "", &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, login.User.ID)

	userURL := fmt.Sprintf("%s/users/%d", server.URL, created.ID)

	// Token required.
	resp = doJSON(t, http.MethodGet, userURL, nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var fetched UserResponse
	resp = doJSON(t, http.MethodGet, userURL, nil, login.Token, &fetched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, fetched.ID)

	// Another user's record is off limits.
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/users/%d", server.URL, created.ID+1), nil, login.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	wallet := "0xabc"
	var updated UserResponse
	resp = doJSON(t, http.MethodPut, userURL, UpdateUserRequest{WalletAddress: &wallet}, login.Token, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0xabc", updated.WalletAddress)

	// Logout invalidates the session behind the token.
	resp = doJSON(t, http.MethodPost, server.URL+"/auth/logout", nil, login.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, userURL, nil, login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublicKeyEndpoints(t *testing.T) {
	server := newTestServer(t)
	alice, aliceToken := registerAndLogin(t, server.URL, "alice@example.com")
	bob, bobToken := registerAndLogin(t, server.URL, "bob@example.com")

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	pubHex := hex.EncodeToString(pub)
	keysURL := fmt.Sprintf("%s/users/%d/keys", server.URL, alice.ID)

	resp := doJSON(t, http.MethodPost, keysURL, AddPublicKeyRequest{PublicKey: pubHex}, aliceToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Same key, same owner: idempotent.
	resp = doJSON(t, http.MethodPost, keysURL, AddPublicKeyRequest{PublicKey: pubHex}, aliceToken, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Same key, different owner: conflict.
	bobKeysURL := fmt.Sprintf("%s/users/%d/keys", server.URL, bob.ID)
	resp = doJSON(t, http.MethodPost, bobKeysURL, AddPublicKeyRequest{PublicKey: pubHex}, bobToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Not a valid key at all.
	resp = doJSON(t, http.MethodPost, keysURL, AddPublicKeyRequest{PublicKey: "junk"}, aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var list PublicKeysResponse
	resp = doJSON(t, http.MethodGet, keysURL, nil, aliceToken, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{pubHex}, list.Keys)

	resp = doJSON(t, http.MethodDelete, keysURL+"/"+pubHex, nil, aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodDelete, keysURL+"/"+pubHex, nil, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoginRateLimiting(t *testing.T) {
	server := newTestServer(t)
	registerAndLogin(t, server.URL, "alice@example.com")

	bad := LoginRequest{Email: "alice@example.com", Password: "wrong password!"}
	for i := 0; i < maxFailures; i++ {
		resp := doJSON(t, http.MethodPost, server.URL+"/auth/login", bad, "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodPost, server.URL+"/auth/login", bad, "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestNetworkEndpoints(t *testing.T) {
	server := newTestServer(t)
	_, token := registerAndLogin(t, server.URL, "alice@example.com")

	var conn map[string]any
	resp := doJSON(t, http.MethodPost, server.URL+"/networks", CreateConnectionRequest{
		NetworkName:  "mainnet",
		IPAddress:    "203.0.113.7",
		InitialScore: 0.5,
	}, token, &conn)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	connID := int64(conn["id"].(float64))

	var conns []map[string]any
	resp = doJSON(t, http.MethodGet, server.URL+"/networks", nil, token, &conns)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, conns, 1)

	statusURL := fmt.Sprintf("%s/networks/%d/status", server.URL, connID)
	score := 0.9
	var status map[string]any
	resp = doJSON(t, http.MethodPut, statusURL, UpdateStatusRequest{
		Connected:     true,
		StatusMessage: "healthy",
		Score:         &score,
	}, token, &status)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", status["status_message"])

	resp = doJSON(t, http.MethodGet, statusURL, nil, token, &status)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.9, status["network_score"])

	connURL := fmt.Sprintf("%s/networks/%d", server.URL, connID)
	connected := true
	uptime := int64(120)
	points := 4.5
	var updated map[string]any
	resp = doJSON(t, http.MethodPut, connURL, UpdateConnectionRequest{
		Connected:        &connected,
		AdditionalTime:   &uptime,
		AdditionalPoints: &points,
	}, token, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, updated["connected"])
	assert.Equal(t, float64(120), updated["connection_time"])
	assert.Equal(t, 4.5, updated["points_earned"])

	negative := int64(-1)
	resp = doJSON(t, http.MethodPut, connURL, UpdateConnectionRequest{AdditionalTime: &negative}, token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var stats map[string]any
	resp = doJSON(t, http.MethodGet, server.URL+"/networks/stats", nil, token, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), stats["total_networks"])

	// A second account cannot touch the connection.
	_, otherToken := registerAndLogin(t, server.URL, "bob@example.com")
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/networks/%d", server.URL, connID), nil, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/networks/%d", server.URL, connID), nil, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestDevRoutes(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		server := newTestServer(t)
		resp := doJSON(t, http.MethodGet, server.URL+"/dev/test-keys", nil, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("enabled with dev keys", func(t *testing.T) {
		server := newTestServer(t, WithDevKeys(genesis.NewDevKeys()))

		var keys []genesis.KeyPair
		resp := doJSON(t, http.MethodGet, server.URL+"/dev/test-keys", nil, "", &keys)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, keys, genesis.NumDevKeys)

		var envelope struct {
			Type string `json:"type"`
			Data struct {
				PublicKey string `json:"public_key"`
				Signature string `json:"signature"`
			} `json:"data"`
		}
		resp = doJSON(t, http.MethodGet, server.URL+"/dev/test-auth-message/0", nil, "", &envelope)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "auth", envelope.Type)
		assert.Equal(t, keys[0].PublicKey, envelope.Data.PublicKey)
		assert.Len(t, envelope.Data.Signature, 128)
	})
}
