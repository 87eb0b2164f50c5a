package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/claytonlow/twilio-deepgram/internal/model"
)

// PhoneNumberLister lists the Twilio numbers that can route calls here.
type PhoneNumberLister interface {
	ListPhoneNumbers(ctx context.Context, limit int) ([]model.PhoneNumber, error)
}

// Handlers holds dependencies for the public HTTP handlers.
type Handlers struct {
	logger *zap.Logger
	// StreamURL is the wss URL Twilio is told to stream calls to. When empty
	// it is derived from the request host.
	StreamURL string
	numbers   PhoneNumberLister
}

// NewHandlers creates the handlers. numbers may be nil when Twilio
// credentials are not configured.
func NewHandlers(logger *zap.Logger, streamURL string, numbers PhoneNumberLister) *Handlers {
	return &Handlers{logger: logger, StreamURL: streamURL, numbers: numbers}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}
