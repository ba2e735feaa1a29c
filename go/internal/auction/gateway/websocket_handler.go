package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auth"
)

// WebSocketHandler handles websocket upgrade requests for round feeds
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	verifier          *auth.Verifier
}

// NewWebSocketHandler creates the handler. With a nil verifier every viewer
// is anonymous and only receives public round events.
func NewWebSocketHandler(cm *ConnectionManager, verifier *auth.Verifier) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		verifier:          verifier,
	}
}

// HandleRoundConnection serves /ws/round?round_id=<uuid>[&token=<jwt>]
func (h *WebSocketHandler) HandleRoundConnection(w http.ResponseWriter, r *http.Request) {
	roundIDStr := r.URL.Query().Get("round_id")
	if roundIDStr == "" {
		http.Error(w, "round_id is required", http.StatusBadRequest)
		return
	}
	roundID, err := uuid.Parse(roundIDStr)
	if err != nil {
		http.Error(w, "invalid round_id format", http.StatusBadRequest)
		return
	}

	viewer, err := h.viewer(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// Upgrade writes its own error response on failure.
	if err := h.connectionManager.UpgradeConnection(w, r, viewer, roundID); err != nil {
		log.Error().
			Err(err).
			Str("round_id", roundID.String()).
			Str("subject", viewer.Subject).
			Msg("failed to upgrade websocket connection")
	}
}

// viewer authenticates the request. Browsers cannot set headers on
// websocket requests, so the token may also come as a query parameter.
func (h *WebSocketHandler) viewer(r *http.Request) (Viewer, error) {
	anonymous := Viewer{Subject: "anonymous"}
	if h.verifier == nil {
		return anonymous, nil
	}

	var claims *auth.Claims
	var err error
	switch {
	case r.Header.Get("Authorization") != "":
		claims, err = h.verifier.VerifyHeader(r.Header.Get("Authorization"))
	case r.URL.Query().Get("token") != "":
		claims, err = h.verifier.Verify(r.URL.Query().Get("token"))
	default:
		return anonymous, nil
	}
	if err != nil {
		return Viewer{}, err
	}

	return Viewer{Subject: claims.Subject, TeamID: claims.TeamID, Official: claims.IsOfficial()}, nil
}

func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/round", h.HandleRoundConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
