package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AireshBhat/nodedash/storage"
)

// GetUser handles GET /users/{userID}.
func (a *API) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireSelf(w, r, chi.URLParam(r, "userID"))
	if !ok {
		return
	}
	user, err := a.users.FindUserByID(r.Context(), userID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateUser handles PUT /users/{userID}.
func (a *API) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireSelf(w, r, chi.URLParam(r, "userID"))
	if !ok {
		return
	}
	req, ok := decodeJSON[UpdateUserRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	user, err := a.users.UpdateUser(r.Context(), userID, storage.UpdateUser{
		Email:         req.Email,
		Username:      req.Username,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditUserUpdated, r, userID)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// DeleteUser handles DELETE /users/{userID}.
func (a *API) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireSelf(w, r, chi.URLParam(r, "userID"))
	if !ok {
		return
	}
	deleted, err := a.users.DeleteUser(r.Context(), userID)
	if err != nil {
		mapError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	a.audit.logEvent(AuditUserDeleted, r, userID)
	w.WriteHeader(http.StatusNoContent)
}
