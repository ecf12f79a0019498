package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/internal/adapters/ai"
	"github.com/selivandex/sentiment-gate/internal/adapters/config"
	"github.com/selivandex/sentiment-gate/internal/adapters/twitter"
	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/models"
)

// XAPI is the evidence source
type XAPI interface {
	SearchRecent(ctx context.Context, query string, maxResults int) ([]models.RawPost, error)
	Usage(ctx context.Context) (*models.UsageReport, error)
}

// ClientProvider hands out collaborators for one call tree
type ClientProvider interface {
	X(creds models.Credentials) (XAPI, error)
	LLM(creds models.Credentials) (ai.Completer, error)
}

// ClientsConfig holds server-side defaults for both collaborators
type ClientsConfig struct {
	XBearerToken  string
	XBaseURL      string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	XTimeout      time.Duration
	OpenAITimeout time.Duration
}

// ClientsConfigFrom extracts client settings from application config
func ClientsConfigFrom(cfg *config.Config) ClientsConfig {
	return ClientsConfig{
		XBearerToken:  cfg.X.BearerToken,
		XBaseURL:      cfg.X.BaseURL,
		XTimeout:      cfg.X.Timeout,
		OpenAIAPIKey:  cfg.OpenAI.APIKey,
		OpenAIModel:   cfg.OpenAI.Model,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAITimeout: cfg.OpenAI.Timeout,
	}
}

// Clients builds default clients lazily once and shares them; requests carrying
// their own keys get fresh clients that are never cached.
type Clients struct {
	cfg ClientsConfig

	xOnce sync.Once
	x     *twitter.Client
	xErr  error

	llmOnce sync.Once
	llm     *ai.OpenAICompleter
	llmErr  error
}

// NewClients creates client provider
func NewClients(cfg ClientsConfig) *Clients {
	return &Clients{cfg: cfg}
}

// X returns the X API client for creds
func (c *Clients) X(creds models.Credentials) (XAPI, error) {
	if creds.XBearerToken != "" {
		client, err := c.newX(creds.XBearerToken)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	c.xOnce.Do(func() {
		c.x, c.xErr = c.newX(c.cfg.XBearerToken)
	})
	if c.xErr != nil {
		return nil, c.xErr
	}
	return c.x, nil
}

// LLM returns the completer for creds
func (c *Clients) LLM(creds models.Credentials) (ai.Completer, error) {
	if creds.OpenAIAPIKey != "" {
		completer, err := c.newLLM(creds.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		return completer, nil
	}

	c.llmOnce.Do(func() {
		c.llm, c.llmErr = c.newLLM(c.cfg.OpenAIAPIKey)
		if c.llmErr == nil {
			logger.Info("OpenAI client initialized", zap.String("model", c.llm.Model()))
		}
	})
	if c.llmErr != nil {
		return nil, c.llmErr
	}
	return c.llm, nil
}

func (c *Clients) newX(token string) (*twitter.Client, error) {
	client, err := twitter.NewClient(twitter.ClientConfig{
		BearerToken: token,
		BaseURL:     c.cfg.XBaseURL,
		Timeout:     c.cfg.XTimeout,
	})
	if errors.Is(err, twitter.ErrMissingToken) {
		return nil, &ValidationError{Fields: map[string]string{
			"credentials": "X bearer token is required. Set X_BEARER_TOKEN or provide your own key.",
		}}
	}
	return client, err
}

func (c *Clients) newLLM(key string) (*ai.OpenAICompleter, error) {
	completer, err := ai.NewOpenAICompleter(ai.OpenAIConfig{
		APIKey:  key,
		Model:   c.cfg.OpenAIModel,
		BaseURL: c.cfg.OpenAIBaseURL,
		Timeout: c.cfg.OpenAITimeout,
	})
	if errors.Is(err, ai.ErrMissingAPIKey) {
		return nil, &ValidationError{Fields: map[string]string{
			"credentials": "OpenAI API key is required. Set OPENAI_API_KEY or provide your own key.",
		}}
	}
	return completer, err
}
