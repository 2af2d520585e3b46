package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wardbook/portalsync/internal/sessionuser"
	"github.com/wardbook/portalsync/pkg/logging"
)

// SessionHandler serves the cached session-user profile.
type SessionHandler struct {
	provider *sessionuser.Provider
	logger   *logging.Logger
}

func NewSessionHandler(provider *sessionuser.Provider, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{provider: provider, logger: logger}
}

// GetSessionUser handles GET /api/session-user.
func (h *SessionHandler) GetSessionUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.provider.Current(r.Context())
	if err != nil {
		h.logger.Error("session user fetch failed", "error", err)
		http.Error(w, "session user unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

// Logout handles POST /api/logout: the cached profile is cleared so the next
// login fetches fresh reference data.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.provider.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
