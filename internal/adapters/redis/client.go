package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/internal/adapters/config"
	"github.com/selivandex/sentiment-gate/pkg/logger"
)

// Client wraps RedLock manager for per-chat locking + standard Redis for the credential store
type Client struct {
	lockManager *redlock.RedLock
	cache       *redis.Client
	addr        string
}

// New creates new Redis client with RedLock support
func New(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	addr := cfg.Addr()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Single instance; quorum of one
	lockManager, err := redlock.NewRedLock(ctx, []string{"tcp://" + addr})
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	cache := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := cache.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis client initialized",
		zap.String("address", addr),
		zap.Int("db", cfg.DB),
	)

	return &Client{
		lockManager: lockManager,
		cache:       cache,
		addr:        addr,
	}, nil
}

// Locker returns a per-chat locker backed by RedLock
func (c *Client) Locker(ttl time.Duration) *RedisLocker {
	return NewRedisLocker(c.lockManager, c.cache, ttl)
}

// Cache returns the underlying go-redis client
func (c *Client) Cache() *redis.Client {
	return c.cache
}

// Ping checks redis health
func (c *Client) Ping(ctx context.Context) error {
	if err := c.cache.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes redis connections
func (c *Client) Close() error {
	logger.Info("closing redis client", zap.String("address", c.addr))
	if err := c.cache.Close(); err != nil {
		return fmt.Errorf("failed to close redis: %w", err)
	}
	return nil
}
