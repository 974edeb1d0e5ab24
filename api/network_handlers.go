package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/AireshBhat/nodedash/storage"
)

// connectionFor parses {connectionID} and checks the connection belongs to
// the authenticated user.
func (a *API) connectionFor(w http.ResponseWriter, r *http.Request) (*storage.NetworkConnection, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "connectionID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid connection id")
		return nil, false
	}
	conn, err := a.networks.FindConnectionByID(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return nil, false
	}
	if conn.UserID != userIDFrom(r.Context()) {
		writeError(w, http.StatusForbidden, "connection belongs to another user")
		return nil, false
	}
	return conn, true
}

// ListConnections handles GET /networks. ?active=true narrows to connected.
func (a *API) ListConnections(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var (
		conns []storage.NetworkConnection
		err   error
	)
	if r.URL.Query().Get("active") == "true" {
		conns, err = a.networks.ActiveConnectionsByUser(r.Context(), userID)
	} else {
		conns, err = a.networks.ConnectionsByUser(r.Context(), userID)
	}
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

// CreateConnection handles POST /networks.
func (a *API) CreateConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateConnectionRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	if req.NetworkName == "" {
		writeError(w, http.StatusBadRequest, "network_name is required")
		return
	}
	conn, err := a.networks.CreateConnection(r.Context(), storage.CreateNetworkConnection{
		UserID:       userIDFrom(r.Context()),
		NetworkName:  req.NetworkName,
		IPAddress:    req.IPAddress,
		InitialScore: req.InitialScore,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditConnectionAdded, r, conn.UserID)
	writeJSON(w, http.StatusCreated, conn)
}

// GetConnection handles GET /networks/{connectionID}.
func (a *API) GetConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := a.connectionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// UpdateConnection handles PUT /networks/{connectionID}. The additive time
// and points fields go through the record operations so the running totals
// update atomically; the remaining fields are a plain partial update.
func (a *API) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := a.connectionFor(w, r)
	if !ok {
		return
	}
	req, ok := decodeJSON[UpdateConnectionRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}

	if req.AdditionalTime != nil {
		if *req.AdditionalTime < 0 {
			writeError(w, http.StatusBadRequest, "additional_time must not be negative")
			return
		}
		if _, err := a.networks.RecordConnectionTime(r.Context(), conn.ID, *req.AdditionalTime); err != nil {
			mapError(w, err)
			return
		}
	}
	if req.AdditionalPoints != nil {
		if *req.AdditionalPoints < 0 {
			writeError(w, http.StatusBadRequest, "additional_points must not be negative")
			return
		}
		if _, err := a.networks.RecordEarnedPoints(r.Context(), conn.ID, *req.AdditionalPoints); err != nil {
			mapError(w, err)
			return
		}
	}

	updated, err := a.networks.UpdateConnection(r.Context(), conn.ID, storage.UpdateNetworkConnection{
		Connected:    req.Connected,
		NetworkScore: req.NetworkScore,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteConnection handles DELETE /networks/{connectionID}.
func (a *API) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := a.connectionFor(w, r)
	if !ok {
		return
	}
	deleted, err := a.networks.DeleteConnection(r.Context(), conn.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	a.audit.logEvent(AuditConnectionRemove, r, conn.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// GetNetworkStatus handles GET /networks/{connectionID}/status.
func (a *API) GetNetworkStatus(w http.ResponseWriter, r *http.Request) {
	conn, ok := a.connectionFor(w, r)
	if !ok {
		return
	}
	status, err := a.networks.NetworkStatus(r.Context(), conn.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// UpdateNetworkStatus handles PUT /networks/{connectionID}/status.
func (a *API) UpdateNetworkStatus(w http.ResponseWriter, r *http.Request) {
	conn, ok := a.connectionFor(w, r)
	if !ok {
		return
	}
	req, ok := decodeJSON[UpdateStatusRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	status, err := a.networks.UpdateNetworkStatus(r.Context(), conn.ID, req.Connected, req.StatusMessage, req.Score)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// NetworkStatistics handles GET /networks/stats.
func (a *API) NetworkStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.networks.Statistics(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
