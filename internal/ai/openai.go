package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"
)

const maxAttempts = 3

// OpenAIBackend talks to the OpenAI chat completion API.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend reads OPENAI_API_KEY from the environment and returns
// ErrBackendUnavailable when it is missing, so callers can degrade to
// skipped AI stages instead of failing the run.
func NewOpenAIBackend(model string) (*OpenAIBackend, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		slog.Warn("OPENAI_API_KEY not set, AI features disabled")
		return nil, ErrBackendUnavailable
	}
	if model == "" {
		model = "gpt-4"
	}
	slog.Info("initializing OpenAI backend", "model", model)
	return &OpenAIBackend{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (b *OpenAIBackend) Model() string { return b.model }

// Complete sends the exchange, retrying transient transport failures with
// a short backoff. Malformed or empty responses are returned as errors
// immediately; retrying cannot fix those.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
			slog.Debug("retrying OpenAI request", "attempt", attempt)
		}

		resp, err := b.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			if !isTransient(err) {
				slog.Error("OpenAI request failed", "error", err)
				return "", fmt.Errorf("openai request: %w", err)
			}
			lastErr = err
			slog.Warn("transient OpenAI failure", "attempt", attempt, "error", err)
			continue
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	}
	slog.Error("OpenAI unreachable after retries", "attempts", maxAttempts, "error", lastErr)
	return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, lastErr)
}

// isTransient classifies errors worth retrying: network trouble, rate
// limits, and 5xx server responses.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return false
}
