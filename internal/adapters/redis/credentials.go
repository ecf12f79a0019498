package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/pkg/crypto"
	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/models"
)

const credentialsKeyPrefix = "sentiment:creds:"

// storedCredentials is the sealed payload; models.Credentials never serializes its keys
type storedCredentials struct {
	XBearerToken string `json:"x,omitempty"`
	OpenAIAPIKey string `json:"openai,omitempty"`
}

// CredentialStore keeps per-chat API keys encrypted in Redis with a TTL
type CredentialStore struct {
	cache  *redis.Client
	cipher *crypto.Cipher
	ttl    time.Duration
}

// NewCredentialStore creates credential store
func NewCredentialStore(cache *redis.Client, cipher *crypto.Cipher, ttl time.Duration) *CredentialStore {
	return &CredentialStore{
		cache:  cache,
		cipher: cipher,
		ttl:    ttl,
	}
}

func credentialsKey(chatID int64) string {
	return fmt.Sprintf("%s%d", credentialsKeyPrefix, chatID)
}

// Save merges creds into what is stored for chatID and refreshes the TTL.
// Empty fields keep their previous value.
func (s *CredentialStore) Save(ctx context.Context, chatID int64, creds models.Credentials) error {
	current, _, err := s.Load(ctx, chatID)
	if err != nil {
		return err
	}
	if creds.XBearerToken != "" {
		current.XBearerToken = creds.XBearerToken
	}
	if creds.OpenAIAPIKey != "" {
		current.OpenAIAPIKey = creds.OpenAIAPIKey
	}

	payload, err := json.Marshal(storedCredentials{
		XBearerToken: current.XBearerToken,
		OpenAIAPIKey: current.OpenAIAPIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	sealed, err := s.cipher.Encrypt(string(payload))
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	if err := s.cache.Set(ctx, credentialsKey(chatID), sealed, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	logger.Info("credentials stored",
		zap.Int64("chat_id", chatID),
		zap.Bool("x", current.XBearerToken != ""),
		zap.Bool("openai", current.OpenAIAPIKey != ""),
		zap.Duration("ttl", s.ttl),
	)

	return nil
}

// Load returns stored credentials for chatID; found is false when none are stored.
// A value that no longer decrypts (rotated secret) is dropped and reported as not found.
func (s *CredentialStore) Load(ctx context.Context, chatID int64) (models.Credentials, bool, error) {
	sealed, err := s.cache.Get(ctx, credentialsKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return models.Credentials{}, false, nil
	}
	if err != nil {
		return models.Credentials{}, false, fmt.Errorf("failed to load credentials: %w", err)
	}

	plain, err := s.cipher.Decrypt(sealed)
	if err != nil {
		logger.Warn("dropping undecryptable credentials",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		return models.Credentials{}, false, s.Forget(ctx, chatID)
	}

	var stored storedCredentials
	if err := json.Unmarshal([]byte(plain), &stored); err != nil {
		return models.Credentials{}, false, fmt.Errorf("failed to decode credentials: %w", err)
	}

	return models.Credentials{
		XBearerToken: stored.XBearerToken,
		OpenAIAPIKey: stored.OpenAIAPIKey,
	}, true, nil
}

// Forget deletes stored credentials for chatID
func (s *CredentialStore) Forget(ctx context.Context, chatID int64) error {
	if err := s.cache.Del(ctx, credentialsKey(chatID)).Err(); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
