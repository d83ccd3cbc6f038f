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
	envOpenAIAPIKey    = "OPENAI_API_KEY"
	envOpenAIModel     = "OPENAI_MODEL"
	defaultOpenAIModel = "gpt-4o-mini"

	openAIAPIURL      = "https://api.openai.com/v1/chat/completions"
	openAIMaxTokens   = 1200
	openAITimeoutSecs = 120

	openAIMaxRetries     = 3
	openAIRetryBaseDelay = 500 * time.Millisecond
	openAIMaxRequestSize = 200000
)

type openAIClient struct {
	apiKey string
	model  string
	http   *http.Client
	logger zerolog.Logger
}

type openAIPayload struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewOpenAIFromEnv builds a Client reading OPENAI_API_KEY/OPENAI_MODEL.
func NewOpenAIFromEnv() (Client, error) {
	key := strings.TrimSpace(os.Getenv(envOpenAIAPIKey))
	if key == "" {
		return nil, fmt.Errorf("missing %s", envOpenAIAPIKey)
	}
	model := strings.Trim(strings.TrimSpace(os.Getenv(envOpenAIModel)), "\"'")
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAIClient{
		apiKey: key,
		model:  model,
		http:   &http.Client{Timeout: openAITimeoutSecs * time.Second},
		logger: zerolog.Nop(),
	}, nil
}

// NewOpenAIWithLogger creates a client with logger for detailed tracing.
func NewOpenAIWithLogger(logger zerolog.Logger) (Client, error) {
	client, err := NewOpenAIFromEnv()
	if err != nil {
		return nil, err
	}
	if oc, ok := client.(*openAIClient); ok {
		oc.logger = logger.With().Str("component", "llm").Str("provider", "openai").Logger()
	}
	return client, nil
}

func (c *openAIClient) Name() string { return c.model }

func (c *openAIClient) Prompt(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

func (c *openAIClient) PromptWithImage(ctx context.Context, prompt string, imagePNG []byte) (string, error) {
	return c.generate(ctx, prompt, imagePNG)
}

func (c *openAIClient) generate(ctx context.Context, prompt string, imagePNG []byte) (string, error) {
	if len(prompt) > openAIMaxRequestSize {
		c.logger.Warn().Int("size", len(prompt)).Msg("prompt too large, truncating")
		prompt = prompt[:openAIMaxRequestSize] + "... [truncated]"
	}

	var content interface{} = prompt
	if len(imagePNG) > 0 {
		dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imagePNG)
		content = []openAIContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL}},
		}
	}

	var lastErr error
	for attempt := 0; attempt <= openAIMaxRetries; attempt++ {
		if attempt > 0 {
			delay := openAIRetryBaseDelay * time.Duration(1<<uint(attempt-1))
			c.logger.Info().Int("attempt", attempt).Dur("delay", delay).Msg("retrying OpenAI API call")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		payload := openAIPayload{
			Model:     c.model,
			Messages:  []openAIMessage{{Role: "user", Content: content}},
			MaxTokens: openAIMaxTokens,
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal payload: %w", err)
		}
		c.logger.Debug().Str("model", c.model).Int("payload_size", len(body)).Msg("OpenAI API request")

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIAPIURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			if attempt < openAIMaxRetries {
				continue
			}
			return "", lastErr
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			if attempt < openAIMaxRetries {
				continue
			}
			return "", lastErr
		}

		c.logger.Debug().Int("status", resp.StatusCode).Int("response_size", len(data)).Msg("OpenAI API response")

		if resp.StatusCode >= 400 {
			var apiResp openAIResponse
			rawError := string(data)
			if err := json.Unmarshal(data, &apiResp); err != nil || apiResp.Error == nil {
				lastErr = fmt.Errorf("openai %d: %s", resp.StatusCode, truncateString(rawError, 500))
			} else {
				lastErr = fmt.Errorf("openai %d: %s (type: %s, code: %s)", resp.StatusCode, apiResp.Error.Message, apiResp.Error.Type, apiResp.Error.Code)
			}
			c.logger.Error().Int("status", resp.StatusCode).Str("raw_response", truncateString(rawError, 500)).
				Int("attempt", attempt).Msg("OpenAI API error")

			if (resp.StatusCode == 429 || resp.StatusCode >= 500) && attempt < openAIMaxRetries {
				continue
			}
			return "", lastErr
		}

		var apiResp openAIResponse
		if err := json.Unmarshal(data, &apiResp); err != nil {
			return "", fmt.Errorf("parse response: %w (raw: %s)", err, truncateString(string(data), 500))
		}
		if len(apiResp.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}
		text := apiResp.Choices[0].Message.Content
		if text == "" {
			return "", fmt.Errorf("empty response content")
		}
		c.logger.Debug().Str("finish_reason", apiResp.Choices[0].FinishReason).
			Int("total_tokens", apiResp.Usage.TotalTokens).
			Str("response_preview", truncateString(text, 200)).Msg("OpenAI API success")
		return text, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
