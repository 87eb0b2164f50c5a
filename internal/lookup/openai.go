package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultSystemPrompt = "You answer questions for a restaurant phone assistant. " +
	"Reply in one or two short spoken sentences."

type OpenAIOptions struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, e.g. for a compatible proxy.
	BaseURL      string
	SystemPrompt string
	Timeout      time.Duration
}

// OpenAI answers questions with a single chat completion.
type OpenAI struct {
	client *openai.Client
	model  string
	system string
	logger *zap.Logger
}

func NewOpenAI(opts OpenAIOptions, logger *zap.Logger) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}

	model := opts.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	system := opts.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		system: system,
		logger: logger,
	}
}

func (o *OpenAI) Invoke(ctx context.Context, question string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.system},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &APIError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	o.logger.Debug("openai completion",
		zap.String("model", resp.Model),
		zap.Int("totalTokens", resp.Usage.TotalTokens),
	)
	return resp.Choices[0].Message.Content, nil
}
