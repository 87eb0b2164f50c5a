package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/claytonlow/twilio-deepgram/internal/model"
)

// PhoneNumbers handles GET /phone-numbers.
func (h *Handlers) PhoneNumbers(w http.ResponseWriter, r *http.Request) {
	if h.numbers == nil {
		writeError(w, http.StatusServiceUnavailable, "twilio credentials are not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	numbers, err := h.numbers.ListPhoneNumbers(r.Context(), limit)
	if err != nil {
		h.logger.Error("list phone numbers failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "twilio unavailable")
		return
	}
	writeJSON(w, http.StatusOK, model.PhoneNumbersResponse{Count: len(numbers), PhoneNumbers: numbers})
}
