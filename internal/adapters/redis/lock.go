package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/pkg/logger"
)

// ChatLock guards one chat against concurrent analyses.
// Implementations: RedLock (shared across replicas) and in-process.
type ChatLock interface {
	// TryAcquire returns false when another analysis for this chat is running
	TryAcquire(ctx context.Context) (bool, error)

	// Release releases the lock
	Release(ctx context.Context) error
}

// Locker creates chat locks
type Locker interface {
	ForChat(chatID int64) ChatLock
}

// RedisLocker creates RedLock-based chat locks
type RedisLocker struct {
	lockManager *redlock.RedLock
	cache       *redis.Client
	ttl         time.Duration
}

// NewRedisLocker creates new Redis locker; ttl should exceed the analysis timeout.
// cache tells a held lock apart from an unreachable Redis.
func NewRedisLocker(lockManager *redlock.RedLock, cache *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		lockManager: lockManager,
		cache:       cache,
		ttl:         ttl,
	}
}

// ForChat creates a distributed lock for specific chat
func (f *RedisLocker) ForChat(chatID int64) ChatLock {
	return &redisChatLock{
		lockManager: f.lockManager,
		cache:       f.cache,
		chatID:      chatID,
		name:        fmt.Sprintf("sentiment:lock:chat:%d", chatID),
		ttl:         f.ttl,
	}
}

type redisChatLock struct {
	lockManager *redlock.RedLock
	cache       *redis.Client
	chatID      int64
	name        string
	ttl         time.Duration
	locked      bool
}

func (l *redisChatLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := l.lockManager.Lock(ctx, l.name, l.ttl)
	if err != nil {
		if perr := l.cache.Ping(ctx).Err(); perr != nil {
			return false, fmt.Errorf("failed to acquire chat lock: %w", perr)
		}

		logger.Debug("chat lock already held",
			zap.Int64("chat_id", l.chatID),
			zap.String("lock_name", l.name),
		)
		return false, nil
	}

	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock: invalid expiry %v", expiry)
	}

	l.locked = true
	logger.Debug("chat lock acquired",
		zap.Int64("chat_id", l.chatID),
		zap.Duration("expiry", expiry),
	)

	return true, nil
}

func (l *redisChatLock) Release(ctx context.Context) error {
	if !l.locked {
		return nil
	}

	if err := l.lockManager.UnLock(ctx, l.name); err != nil {
		// may have already expired
		logger.Warn("failed to release chat lock",
			zap.Int64("chat_id", l.chatID),
			zap.Error(err),
		)
	}

	l.locked = false
	return nil
}

// LocalLocker is the in-process locker used when Redis is disabled
type LocalLocker struct {
	mu   sync.Mutex
	busy map[int64]struct{}
}

// NewLocalLocker creates in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{busy: make(map[int64]struct{})}
}

// ForChat creates an in-process lock for specific chat
func (f *LocalLocker) ForChat(chatID int64) ChatLock {
	return &localChatLock{owner: f, chatID: chatID}
}

type localChatLock struct {
	owner  *LocalLocker
	chatID int64
	locked bool
}

func (l *localChatLock) TryAcquire(context.Context) (bool, error) {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()

	if _, ok := l.owner.busy[l.chatID]; ok {
		return false, nil
	}
	l.owner.busy[l.chatID] = struct{}{}
	l.locked = true
	return true, nil
}

func (l *localChatLock) Release(context.Context) error {
	if !l.locked {
		return nil
	}

	l.owner.mu.Lock()
	delete(l.owner.busy, l.chatID)
	l.owner.mu.Unlock()

	l.locked = false
	return nil
}
