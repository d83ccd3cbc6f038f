package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	envAPIKey    = "ANTHROPIC_API_KEY"
	envModel     = "ANTHROPIC_MODEL"
	defaultModel = "claude-sonnet-4-5-20250929"

	apiURL      = "https://api.anthropic.com/v1/messages"
	apiVersion  = "2023-06-01"
	maxTokens   = 1200
	timeoutSecs = 120

	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
	maxRequestSize = 200000 // ~200KB limit for safety
)

type anthropicClient struct {
	apiKey string
	model  string
	http   *http.Client
	logger zerolog.Logger
}

// NewAnthropicFromEnv builds a Client reading ANTHROPIC_API_KEY/ANTHROPIC_MODEL.
func NewAnthropicFromEnv() (Client, error) {
	key := strings.TrimSpace(os.Getenv(envAPIKey))
	if key == "" {
		return nil, fmt.Errorf("missing %s", envAPIKey)
	}
	model := strings.Trim(strings.TrimSpace(os.Getenv(envModel)), "\"'")
	if model == "" {
		model = defaultModel
	}
	return &anthropicClient{
		apiKey: key,
		model:  model,
		http:   &http.Client{Timeout: timeoutSecs * time.Second},
		logger: zerolog.Nop(),
	}, nil
}

// NewAnthropicWithLogger creates a client with logger for detailed tracing.
func NewAnthropicWithLogger(logger zerolog.Logger) (Client, error) {
	client, err := NewAnthropicFromEnv()
	if err != nil {
		return nil, err
	}
	if ac, ok := client.(*anthropicClient); ok {
		ac.logger = logger.With().Str("component", "llm").Str("provider", "anthropic").Logger()
	}
	return client, nil
}

func (c *anthropicClient) Name() string { return c.model }

func (c *anthropicClient) Prompt(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

func (c *anthropicClient) PromptWithImage(ctx context.Context, prompt string, imagePNG []byte) (string, error) {
	return c.generate(ctx, prompt, imagePNG)
}

func (c *anthropicClient) generate(ctx context.Context, prompt string, imagePNG []byte) (string, error) {
	if len(prompt) > maxRequestSize {
		c.logger.Warn().Int("size", len(prompt)).Msg("prompt too large, truncating")
		prompt = prompt[:maxRequestSize] + "... [truncated]"
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
			c.logger.Info().Int("attempt", attempt).Dur("delay", delay).Msg("retrying Anthropic API call")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		content := []anthropicContent{{Type: "text", Text: prompt}}
		if len(imagePNG) > 0 {
			content = append(content, anthropicContent{
				Type: "image",
				Source: &anthropicImageSource{
					Type:      "base64",
					MediaType: "image/png",
					Data:      base64.StdEncoding.EncodeToString(imagePNG),
				},
			})
		}
		payload := anthropicPayload{
			Model:     c.model,
			MaxTokens: maxTokens,
			Messages:  []anthropicMessage{{Role: "user", Content: content}},
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal payload: %w", err)
		}

		c.logger.Debug().Str("model", c.model).Int("payload_size", len(body)).Msg("Anthropic API request")

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", apiVersion)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			if attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			if attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		c.logger.Debug().Int("status", resp.StatusCode).Int("response_size", len(data)).Msg("Anthropic API response")

		if resp.StatusCode >= 400 {
			var apiErr anthropicError
			rawError := string(data)
			if err := json.Unmarshal(data, &apiErr); err != nil {
				lastErr = fmt.Errorf("anthropic %d: %s", resp.StatusCode, truncateString(rawError, 500))
			} else {
				lastErr = fmt.Errorf("anthropic %d: %s (type: %s)", resp.StatusCode, apiErr.Error(), apiErr.Type)
			}
			c.logger.Error().Int("status", resp.StatusCode).Str("raw_response", truncateString(string(data), 500)).
				Int("attempt", attempt).Msg("Anthropic API error")

			if resp.StatusCode == 400 && apiErr.Type == "invalid_request_error" && strings.Contains(apiErr.Message, "API usage limits") {
				return "", fmt.Errorf("API usage limit reached: %s", apiErr.Message)
			}
			if (resp.StatusCode == 429 || resp.StatusCode >= 500) && attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		var ar anthropicResponse
		if err := json.Unmarshal(data, &ar); err != nil {
			lastErr = fmt.Errorf("parse response: %w", err)
			if attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		var buf bytes.Buffer
		for _, c := range ar.Content {
			if c.Type == "text" {
				buf.WriteString(c.Text)
			}
		}
		c.logger.Debug().Int("response_length", buf.Len()).Msg("Anthropic API success")
		return buf.String(), nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

type anthropicPayload struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e anthropicError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Type
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
