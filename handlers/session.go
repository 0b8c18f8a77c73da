package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"kinofeed/internal/tmdb"
)

type sessionClient interface {
	CreateRequestToken(context.Context) (string, error)
	CreateSession(context.Context, string) (string, error)
}

var _ sessionClient = (*tmdb.Client)(nil)

// SessionHandler exposes the two-step provider authentication flow used
// by the favorites and watchlist catalogs.
type SessionHandler struct {
	Client sessionClient
}

func NewSessionHandler(c sessionClient) *SessionHandler {
	return &SessionHandler{Client: c}
}

// RequestToken serves GET /request_token.
func (h *SessionHandler) RequestToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.Client.CreateRequestToken(r.Context())
	if err != nil {
		log.Printf("[session] request token failed: %v", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"request_token": token})
}

// SessionID serves GET /session_id?request_token=..., exchanging an
// approved token for a session id.
func (h *SessionHandler) SessionID(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("request_token")
	if token == "" {
		writeError(w, http.StatusBadRequest, errors.New("request_token is required"))
		return
	}
	session, err := h.Client.CreateSession(r.Context(), token)
	if err != nil {
		log.Printf("[session] session exchange failed: %v", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": session})
}
