package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	X           XConfig           `envconfig:"X"`
	OpenAI      OpenAIConfig      `envconfig:"OPENAI"`
	Analysis    AnalysisConfig    `envconfig:"ANALYSIS"`
	Tokens      TokensConfig      `envconfig:"TOKEN"`
	HTTP        HTTPConfig        `envconfig:"HTTP"`
	Health      HealthConfig      `envconfig:"HEALTH"`
	Telegram    TelegramConfig    `envconfig:"TELEGRAM"`
	Redis       RedisConfig       `envconfig:"REDIS"`
	Credentials CredentialsConfig `envconfig:"CREDENTIALS"`
	Usage       UsageConfig       `envconfig:"USAGE"`
	Logging     LoggingConfig     `envconfig:"LOG"`
}

// XConfig represents X API v2 access
type XConfig struct {
	BearerToken string        `envconfig:"BEARER_TOKEN"`
	BaseURL     string        `envconfig:"API_BASE_URL" default:"https://api.x.com"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"15s"`
	MaxResults  int           `envconfig:"MAX_RESULTS" default:"100"`
}

// OpenAIConfig represents the LLM provider
type OpenAIConfig struct {
	APIKey  string        `envconfig:"API_KEY"`
	Model   string        `envconfig:"MODEL" default:"gpt-4o"`
	BaseURL string        `envconfig:"BASE_URL"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"60s"`
}

// AnalysisConfig represents pipeline limits
type AnalysisConfig struct {
	MaxPosts int           `envconfig:"MAX_POSTS" default:"50"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"90s"`
}

// TokensConfig extends the curated ticker tables, e.g. TOKEN_PROJECT_NAMES=PEPE:Pepe,ARB:Arbitrum
type TokensConfig struct {
	ProjectNames    map[string]string `envconfig:"PROJECT_NAMES"`
	OfficialHandles map[string]string `envconfig:"OFFICIAL_HANDLES"`
}

// HTTPConfig represents the JSON API listener
type HTTPConfig struct {
	Addr string `envconfig:"ADDR" default:":8080"`
}

// HealthConfig represents the probe server
type HealthConfig struct {
	Port int `envconfig:"PORT" default:"8081"`
}

// TelegramConfig represents Telegram bot configuration; the bot is disabled without a token
type TelegramConfig struct {
	BotToken     string  `envconfig:"BOT_TOKEN"`
	AllowedChats []int64 `envconfig:"ALLOWED_CHATS"`
}

// RedisConfig represents Redis connection parameters
type RedisConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
	Enabled  bool   `envconfig:"ENABLED" default:"false"`
}

// CredentialsConfig represents the per-chat key session store
type CredentialsConfig struct {
	TTL    time.Duration `envconfig:"TTL" default:"24h"`
	Secret string        `envconfig:"SECRET"`
}

// UsageConfig represents the X usage poller
type UsageConfig struct {
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"15m"`
	// AlertPercent notifies allowed chats once usage crosses this share of the cap; 0 disables
	AlertPercent int `envconfig:"ALERT_PERCENT" default:"80"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LEVEL" default:"info"`
	File  string `envconfig:"FILE"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks formats and ranges. API keys stay optional: requests may bring their own.
func (c *Config) Validate() error {
	if err := validateURL("X_API_BASE_URL", c.X.BaseURL); err != nil {
		return err
	}
	if c.OpenAI.BaseURL != "" {
		if err := validateURL("OPENAI_BASE_URL", c.OpenAI.BaseURL); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.OpenAI.Model) == "" {
		return fmt.Errorf("openai model is required")
	}

	if c.X.Timeout <= 0 || c.OpenAI.Timeout <= 0 || c.Analysis.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.X.MaxResults < 10 || c.X.MaxResults > 100 {
		return fmt.Errorf("x max_results must be between 10 and 100")
	}
	if c.Analysis.MaxPosts < 1 || c.Analysis.MaxPosts > 100 {
		return fmt.Errorf("analysis max_posts must be between 1 and 100")
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health port out of range")
	}
	if c.Usage.AlertPercent < 0 || c.Usage.AlertPercent > 100 {
		return fmt.Errorf("usage alert percent must be between 0 and 100, got %d", c.Usage.AlertPercent)
	}
	if c.Usage.PollInterval < time.Minute {
		return fmt.Errorf("usage poll interval must be at least 1m")
	}

	if c.Redis.Enabled {
		if c.Credentials.TTL <= 0 {
			return fmt.Errorf("credentials ttl must be positive")
		}
		if len(c.Credentials.Secret) < 16 {
			return fmt.Errorf("credentials secret must be at least 16 bytes when redis is enabled")
		}
	}

	return nil
}

// Addr returns host:port for go-redis and redlock
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TelegramEnabled returns true when a bot token is configured
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}

// ChatAllowed returns true if chatID may use the bot; an empty list allows everyone
func (c *TelegramConfig) ChatAllowed(chatID int64) bool {
	if len(c.AllowedChats) == 0 {
		return true
	}
	for _, id := range c.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}
