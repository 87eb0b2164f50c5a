package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/claytonlow/twilio-deepgram/internal/session"
)

type listSessionsResponse struct {
	Count    int               `json:"count"`
	Sessions []session.Summary `json:"sessions"`
}

// InternalRoutes mounts the operator API on r.
func (b *Bridge) InternalRoutes(r chi.Router) {
	r.Get("/internal/sessions", b.handleListSessions)
	r.Delete("/internal/sessions/{id}", b.handleCloseSession)
}

func (b *Bridge) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries := b.tracker.List()
	resp := listSessionsResponse{Count: len(summaries), Sessions: summaries}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (b *Bridge) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}
	if !b.tracker.Close(id) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	b.logger.Info("session closed via internal API", zap.String("sessionId", id))
	w.WriteHeader(http.StatusNoContent)
}
