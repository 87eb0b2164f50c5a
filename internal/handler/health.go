package handler

import (
	"net/http"

	"github.com/claytonlow/twilio-deepgram/internal/model"
)

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// Root handles GET /.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.RootResponse{Message: "Twilio Voice AI Server"})
}
