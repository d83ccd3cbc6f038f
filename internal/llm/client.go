// Package llm wraps the remote LLM RPC spec.md §6.2 requires: a
// Prompt(ctx, prompt) -> string call of arbitrary, non-cancellable
// latency, plus an image-attached variant for visual analysis. Grounded
// on the teacher's internal/llm package (retry/backoff, error
// classification, request-size guards); the tool-calling Request/Message
// shape is dropped since the planner speaks plain-text prompts and XML
// responses rather than JSON tool calls.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	envProvider = "LLM_PROVIDER" // "anthropic" or "openai"
)

// Client is the capability contract spec.md §6.2 names.
type Client interface {
	// Prompt sends a single text prompt and returns the model's raw text
	// response.
	Prompt(ctx context.Context, prompt string) (string, error)
	// PromptWithImage attaches a PNG image to the prompt, used by visual
	// analysis (spec.md §5 timeouts table).
	PromptWithImage(ctx context.Context, prompt string, imagePNG []byte) (string, error)
	Name() string
}

// NewFromEnv dispatches on LLM_PROVIDER, defaulting to Anthropic.
func NewFromEnv() (Client, error) {
	return newFromEnv(zerolog.Nop())
}

// NewWithLogger dispatches on LLM_PROVIDER with a caller-supplied logger.
func NewWithLogger(logger zerolog.Logger) (Client, error) {
	return newFromEnv(logger)
}

func newFromEnv(logger zerolog.Logger) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv(envProvider)))
	if provider == "" {
		provider = "anthropic"
	}
	switch provider {
	case "anthropic":
		return NewAnthropicWithLogger(logger)
	case "openai":
		return NewOpenAIWithLogger(logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (use 'anthropic' or 'openai')", provider)
	}
}
