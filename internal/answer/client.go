// Package answer synthesizes answers over an OpenAI-compatible
// chat-completions endpoint.
package answer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/config"
	"github.com/young1lin/flux/internal/httputil"
	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/pkg/logger"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultMaxTokens   = 512
	DefaultTemperature = float32(0.3)

	providerName = "Answer"
)

var (
	// ErrEmptyPrompt is returned when the user prompt is blank
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrEmptyAnswer is returned when the model produced no text
	ErrEmptyAnswer = errors.New("model returned an empty answer")
)

// Prompt is a system instruction plus the user turn
type Prompt struct {
	System string
	User   string
}

// ChatAPI is the subset of the go-openai client used here
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client synthesizes answers through a chat-completions API
type Client struct {
	api         ChatAPI
	model       string
	maxTokens   int
	temperature float32
	log         *zap.Logger
}

// NewClient builds a client from config. A nil transport uses
// http.DefaultTransport.
func NewClient(cfg *config.AnswerConfig, transport http.RoundTripper) *Client {
	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = httputil.NewClient(cfg.Timeout, transport)

	return NewClientWithAPI(openai.NewClientWithConfig(clientCfg), cfg.Model, cfg.MaxTokens, cfg.Temperature)
}

// NewClientWithAPI wraps an existing chat API. A negative temperature
// selects DefaultTemperature; zero is kept.
func NewClientWithAPI(api ChatAPI, model string, maxTokens int, temperature float32) *Client {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if temperature < 0 {
		temperature = DefaultTemperature
	}
	return &Client{
		api:         api,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		log:         logger.Named("answer"),
	}
}

// Model returns the model name reported in responses
func (c *Client) Model() string {
	return c.model
}

// wireTemperature maps 0 to the smallest positive float32 so the
// omitempty request field is still sent.
func (c *Client) wireTemperature() float32 {
	if c.temperature == 0 {
		return math.SmallestNonzeroFloat32
	}
	return c.temperature
}

// Synthesize sends the prompt and returns the trimmed answer text
func (c *Client) Synthesize(ctx context.Context, prompt Prompt) (string, error) {
	user := strings.TrimSpace(prompt.User)
	if user == "" {
		return "", ErrEmptyPrompt
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.wireTemperature(),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &models.ProviderError{Provider: providerName, Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyAnswer
	}

	c.log.Debug("answer synthesized",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return text, nil
}
