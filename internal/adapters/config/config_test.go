package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("X_BEARER_TOKEN", "bearer")
	t.Setenv("TOKEN_PROJECT_NAMES", "PEPE:Pepe,ARB:Arbitrum")
	t.Setenv("TELEGRAM_ALLOWED_CHATS", "1,2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.X.BearerToken != "bearer" {
		t.Errorf("expected bearer token, got %q", cfg.X.BearerToken)
	}
	if cfg.X.BaseURL != "https://api.x.com" {
		t.Errorf("unexpected base url %q", cfg.X.BaseURL)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("unexpected model %q", cfg.OpenAI.Model)
	}
	if cfg.Analysis.MaxPosts != 50 || cfg.Analysis.Timeout != 90*time.Second {
		t.Errorf("unexpected analysis config %+v", cfg.Analysis)
	}
	if cfg.Tokens.ProjectNames["ARB"] != "Arbitrum" {
		t.Errorf("expected ARB project name, got %v", cfg.Tokens.ProjectNames)
	}
	if !cfg.Telegram.ChatAllowed(2) || cfg.Telegram.ChatAllowed(3) {
		t.Error("allowed chats not honoured")
	}
	if cfg.Credentials.TTL != 24*time.Hour {
		t.Errorf("unexpected credentials ttl %v", cfg.Credentials.TTL)
	}
	if cfg.Usage.AlertPercent != 80 {
		t.Errorf("unexpected alert percent %d", cfg.Usage.AlertPercent)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Errorf("unexpected redis addr %q", cfg.Redis.Addr())
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			X:        XConfig{BaseURL: "https://api.x.com", Timeout: time.Second, MaxResults: 100},
			OpenAI:   OpenAIConfig{Model: "gpt-4o", Timeout: time.Second},
			Analysis: AnalysisConfig{MaxPosts: 50, Timeout: time.Second},
			Health:   HealthConfig{Port: 8081},
			Usage:    UsageConfig{PollInterval: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"relative base url", func(c *Config) { c.X.BaseURL = "api.x.com" }, true},
		{"bad openai url", func(c *Config) { c.OpenAI.BaseURL = "ftp://x" }, true},
		{"empty model", func(c *Config) { c.OpenAI.Model = " " }, true},
		{"zero timeout", func(c *Config) { c.Analysis.Timeout = 0 }, true},
		{"max posts too high", func(c *Config) { c.Analysis.MaxPosts = 500 }, true},
		{"max results too low", func(c *Config) { c.X.MaxResults = 5 }, true},
		{"alert percent too high", func(c *Config) { c.Usage.AlertPercent = 150 }, true},
		{"redis without secret", func(c *Config) { c.Redis.Enabled = true; c.Credentials.TTL = time.Hour }, true},
		{"redis with secret", func(c *Config) {
			c.Redis.Enabled = true
			c.Credentials.TTL = time.Hour
			c.Credentials.Secret = "0123456789abcdef"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
