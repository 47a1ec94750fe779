// Package ai abstracts the completion backend used for code generation
// and logic review.
package ai

import (
	"context"
	"errors"
)

// ErrBackendUnavailable signals that no backend is configured or the
// backend could not be reached after retries. Callers treat it as a
// skip condition, not a validation failure.
var ErrBackendUnavailable = errors.New("ai backend unavailable")

// Request carries a single completion exchange.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

// Backend produces completions. Implementations must honor ctx
// cancellation and return the raw assistant text untouched.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}
