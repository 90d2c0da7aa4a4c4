// File: internal/llmclient/client.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/glimpsehq/glimpse/api/schemas"
	"github.com/glimpsehq/glimpse/internal/config"
)

// Client talks to an OpenAI-compatible chat-completions endpoint. Vision
// models receive the page screenshot as an image part alongside the text
// prompt.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	cfg        config.ModelConfig
}

// -- Wire structures (internal to this file) --

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequestPayload struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponsePayload struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// CompletionRequest is one fully assembled model invocation.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	// ScreenshotPNG, when non-empty, is attached as a base64 image part.
	ScreenshotPNG []byte
	ForceJSON     bool
	// Profile carries the request-scoped model selection; zero fields fall
	// back to the client's static configuration.
	Profile schemas.ModelProfile
}

// CompletionResponse is the raw content plus its token accounting.
type CompletionResponse struct {
	Content string
	Usage   schemas.Usage
}

// NewClient initializes the HTTP model client.
func NewClient(cfg config.ModelConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("model base URL is required")
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	return &Client{
		cfg:        cfg,
		limiter:    limiter,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		logger:     logger.Named("llm_client"),
	}, nil
}

// Complete sends the request and returns the model's reply, retrying
// transient failures with exponential backoff.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait aborted: %w", err)
		}
	}

	baseURL, apiKey, model := c.resolveTarget(req.Profile)
	body, err := json.Marshal(c.buildPayload(req, model))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var result *CompletionResponse

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+apiKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("Network error during model request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var payload chatResponsePayload
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(payload.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("model API returned no choices"))
		}

		c.logger.Debug("Model completion finished",
			zap.String("model", model),
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", payload.Usage.PromptTokens),
			zap.Int("completion_tokens", payload.Usage.CompletionTokens),
		)

		result = &CompletionResponse{
			Content: payload.Choices[0].Message.Content,
			Usage: schemas.Usage{
				PromptTokens:     payload.Usage.PromptTokens,
				CompletionTokens: payload.Usage.CompletionTokens,
				TotalTokens:      payload.Usage.TotalTokens,
			},
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// resolveTarget applies the request-scoped profile over the static config.
func (c *Client) resolveTarget(p schemas.ModelProfile) (baseURL, apiKey, model string) {
	baseURL, apiKey, model = c.cfg.BaseURL, c.cfg.APIKey, c.cfg.Name
	if p.BaseURL != "" {
		baseURL = p.BaseURL
	}
	if p.APIKey != "" {
		apiKey = p.APIKey
	}
	if p.Model != "" {
		model = p.Model
	}
	return baseURL, apiKey, model
}

func (c *Client) buildPayload(req CompletionRequest, model string) chatRequestPayload {
	parts := []contentPart{{Type: "text", Text: req.UserPrompt}}
	if len(req.ScreenshotPNG) > 0 {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/png;base64," + base64Encode(req.ScreenshotPNG)},
		})
	}

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: []contentPart{{Type: "text", Text: req.SystemPrompt}},
		})
	}
	messages = append(messages, chatMessage{Role: "user", Content: parts})

	payload := chatRequestPayload{
		Model:       model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if req.ForceJSON {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return payload
}

func (c *Client) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Model API returned error status", zap.Int("status", statusCode), zap.ByteString("response", body))
	err := fmt.Errorf("model API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}

func base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
