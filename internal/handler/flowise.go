package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const stubCompletion = "Fast language models matter because callers expect an answer while they are still on the line."

// FlowiseChat handles POST /flowise/chat/{chatId}. It logs the request and
// answers with a fixed OpenAI-style chat completion, so a Flowise chatflow can
// be pointed at this service while wiring it up.
func (h *Handlers) FlowiseChat(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.logger.Info("flowise chat request",
		zap.String("chatId", chi.URLParam(r, "chatId")),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
	)

	writeJSON(w, http.StatusOK, openai.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   "customflowise",
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: stubCompletion,
			},
			FinishReason: openai.FinishReasonStop,
		}},
	})
}
