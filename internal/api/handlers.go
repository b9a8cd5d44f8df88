package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"mural-backend/internal/auth"
	"mural-backend/internal/session"
	"mural-backend/internal/store"
)

const (
	recentSessionsWindow = 30 * time.Minute
	recentSessionsLimit  = 3
)

type API struct {
	registry *session.Registry
	store    *store.Store
	verifier *auth.Verifier
}

func New(registry *session.Registry, st *store.Store, verifier *auth.Verifier) *API {
	return &API{
		registry: registry,
		store:    st,
		verifier: verifier,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("encoding JSON response failed")
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"active_rooms":   a.registry.RoomCount(),
		"active_clients": a.registry.MemberCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.store != nil {
		dbStats, err := a.store.Stats()
		if err == nil {
			stats["total_boards"] = dbStats["board_count"]
			stats["total_strokes"] = dbStats["stroke_count"]
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// RecentSessionsHandler returns up to three rooms the caller participated in
// within the last 30 minutes, each reported as expired when the caller has
// left it. Wrap with auth.Middleware; the user id comes from the verified
// token.
func (a *API) RecentSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID := auth.UserID(r.Context())
	if userID == "" {
		errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessions, err := a.store.RecentSessions(userID, recentSessionsWindow, recentSessionsLimit)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": sessions,
	})
}
