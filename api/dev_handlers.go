package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListTestKeys handles GET /dev/test-keys. Development only; the private
// halves are deterministic throwaway keys, not secrets.
func (a *API) ListTestKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.devKeys.All())
}

// GetTestKey handles GET /dev/test-keys/{index}.
func (a *API) GetTestKey(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key index")
		return
	}
	pair, ok := a.devKeys.ByIndex(index)
	if !ok {
		writeError(w, http.StatusNotFound, "no test key at that index")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// GetTestAuthMessage handles GET /dev/test-auth-message/{index}: a
// ready-to-send WebSocket auth frame signed by the chosen test key.
func (a *API) GetTestAuthMessage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key index")
		return
	}
	envelope, err := a.devKeys.AuthEnvelope(index)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(envelope)
}
