package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// APIError is a non-2xx answer from a lookup backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lookup backend returned %d: %s", e.StatusCode, e.Body)
}

type FlowiseOptions struct {
	BaseURL    string
	Token      string
	ChatflowID string
	// Timeout bounds each prediction request. Zero means no limit.
	Timeout time.Duration
}

// Flowise answers questions with a non-streaming Flowise chatflow prediction.
type Flowise struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *zap.Logger
}

func NewFlowise(opts FlowiseOptions, logger *zap.Logger) *Flowise {
	base := strings.TrimRight(opts.BaseURL, "/")
	return &Flowise{
		endpoint: base + "/api/v1/prediction/" + opts.ChatflowID,
		token:    opts.Token,
		http:     &http.Client{Timeout: opts.Timeout},
		logger:   logger,
	}
}

type predictionRequest struct {
	Question  string `json:"question"`
	Streaming bool   `json:"streaming"`
}

type predictionResponse struct {
	Text string `json:"text"`
}

// Invoke sends question to the chatflow and returns the prediction text.
func (f *Flowise) Invoke(ctx context.Context, question string) (string, error) {
	body, err := json.Marshal(predictionRequest{Question: question})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("flowise prediction: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read prediction: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out predictionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode prediction: %w", err)
	}
	f.logger.Debug("flowise prediction", zap.Int("chars", len(out.Text)))
	return out.Text, nil
}
