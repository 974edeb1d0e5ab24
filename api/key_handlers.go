package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListPublicKeys handles GET /users/{userID}/keys.
func (a *API) ListPublicKeys(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireSelf(w, r, chi.URLParam(r, "userID"))
	if !ok {
		return
	}
	keys, err := a.keys.UserKeys(r.Context(), userID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PublicKeysResponse{Keys: keys})
}

// AddPublicKey handles POST /users/{userID}/keys.
func (a *API) AddPublicKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireSelf(w, r, chi.URLParam(r, "userID"))
	if !ok {
		return
	}
	req, ok := decodeJSON[AddPublicKeyRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	if err := a.keys.RegisterKey(r.Context(), userID, req.PublicKey); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditKeyRegistered, r, userID)
	w.WriteHeader(http.StatusCreated)
}

// RevokePublicKey handles DELETE /users/{userID}/keys/{key}.
func (a *API) RevokePublicKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireSelf(w, r, chi.URLParam(r, "userID"))
	if !ok {
		return
	}
	revoked, err := a.keys.RevokeKey(r.Context(), userID, chi.URLParam(r, "key"))
	if err != nil {
		mapError(w, err)
		return
	}
	if !revoked {
		writeError(w, http.StatusNotFound, "key not found")
		return
	}
	a.audit.logEvent(AuditKeyRevoked, r, userID)
	w.WriteHeader(http.StatusNoContent)
}
