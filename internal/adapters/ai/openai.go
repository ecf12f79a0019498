package ai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/metrics"
)

const (
	DefaultModel = "gpt-4o"

	maxCompletionTokens = 400
)

// ErrMissingAPIKey is returned when no OpenAI key is available
var ErrMissingAPIKey = errors.New("OpenAI API key is not configured")

// Completer sends a compiled prompt to an LLM and returns the raw reply text
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// ProviderError is a failed call to the LLM provider
type ProviderError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *ProviderError) Error() string {
	return "OpenAI: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// OpenAIConfig configures the OpenAI completer
type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API root, e.g. for a proxy; must include /v1
	BaseURL string
	Timeout time.Duration
}

// OpenAICompleter implements Completer with the chat completions API
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates new OpenAI completer
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAICompleter{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Model returns the configured model name
func (o *OpenAICompleter) Model() string {
	return o.model
}

// Complete returns the trimmed content of the first choice, or "" when there is none
func (o *OpenAICompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	req := o.buildRequest(prompt)

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		perr := toProviderError(err)
		metrics.ObserveNetworkRequest("openai", "chat", start, perr.StatusCode, err)
		return "", perr
	}

	metrics.ObserveNetworkRequest("openai", "chat", start, http.StatusOK, nil)
	metrics.ObserveLLMTokens(o.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		logger.Warn("OpenAI returned no choices", zap.String("model", o.model))
		return "", nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	logger.Debug("OpenAI response",
		zap.Duration("latency", time.Since(start)),
		zap.Bool("repair", prompt.Repair),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return content, nil
}

func (o *OpenAICompleter) buildRequest(prompt Prompt) openai.ChatCompletionRequest {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
		{Role: openai.ChatMessageRoleUser, Content: prompt.User},
	}
	if prompt.Repair {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: RepairInstruction,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:               o.model,
		Messages:            messages,
		MaxCompletionTokens: maxCompletionTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	// temperature is omitted when zero, so the smallest float stands in for 0
	if strings.HasPrefix(o.model, "gpt-4o") {
		req.Temperature = math.SmallestNonzeroFloat32
	}

	return req
}

func toProviderError(err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return &ProviderError{Err: err, Message: msg, StatusCode: apiErr.HTTPStatusCode}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Err: err, Message: reqErr.Error(), StatusCode: reqErr.HTTPStatusCode}
	}

	return &ProviderError{Err: err, Message: err.Error()}
}

// Ensure interface compliance
var _ Completer = (*OpenAICompleter)(nil)
