package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/internal/adapters/ai"
	"github.com/selivandex/sentiment-gate/internal/adapters/config"
	redisAdapter "github.com/selivandex/sentiment-gate/internal/adapters/redis"
	"github.com/selivandex/sentiment-gate/internal/adapters/telegram"
	"github.com/selivandex/sentiment-gate/internal/adapters/twitter"
	"github.com/selivandex/sentiment-gate/internal/analysis"
	"github.com/selivandex/sentiment-gate/internal/api"
	"github.com/selivandex/sentiment-gate/internal/health"
	"github.com/selivandex/sentiment-gate/internal/sentiment"
	"github.com/selivandex/sentiment-gate/internal/workers"
	"github.com/selivandex/sentiment-gate/pkg/crypto"
	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/metrics"
	"github.com/selivandex/sentiment-gate/pkg/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Sentiment gate starting...",
		zap.String("model", cfg.OpenAI.Model),
		zap.Bool("telegram", cfg.TelegramEnabled()),
		zap.Bool("redis", cfg.Redis.Enabled),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	service, err := initService(cfg)
	if err != nil {
		return err
	}

	redisClient, err := initRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	checks := map[string]health.Pinger{}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	healthServer := health.NewServer(":"+strconv.Itoa(cfg.Health.Port), checks)
	go func() {
		if err := healthServer.Start(); err != nil {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	apiServer := api.NewServer(service, api.Options{
		Addr:    cfg.HTTP.Addr,
		Timeout: cfg.Analysis.Timeout,
	})
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	bot, err := initTelegram(ctx, cfg, service, redisClient)
	if err != nil {
		return err
	}

	group := worker.NewGroup(ctx)
	if cfg.X.BearerToken != "" {
		group.Add(workers.NewUsagePoller(service, initNotifier(cfg, bot), cfg.Usage.AlertPercent), cfg.Usage.PollInterval)
	} else {
		logger.Info("usage poller disabled, no server X bearer token")
	}
	group.Start()

	healthServer.SetReady(true)
	logger.Info("Sentiment gate ready",
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.Int("health_port", cfg.Health.Port),
	)

	<-ctx.Done()
	logger.Info("shutting down gracefully...")
	healthServer.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if bot != nil {
		bot.Close()
	}
	group.Stop(shutdownTimeout)
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", zap.Error(err))
	}

	return nil
}

// initService wires the analysis pipeline
func initService(cfg *config.Config) (*analysis.Service, error) {
	compiler, err := ai.NewCompiler()
	if err != nil {
		return nil, err
	}

	directory := twitter.NewDirectory(cfg.Tokens.ProjectNames, cfg.Tokens.OfficialHandles)
	clients := analysis.NewClients(analysis.ClientsConfigFrom(cfg))

	service := analysis.NewService(clients, compiler, sentiment.NewRanker(), directory).
		WithSearchLimit(cfg.X.MaxResults).
		WithMaxPosts(cfg.Analysis.MaxPosts)

	logger.Info("analysis service initialized",
		zap.Int("search_limit", cfg.X.MaxResults),
		zap.Int("max_posts", cfg.Analysis.MaxPosts),
		zap.Bool("server_x_key", cfg.X.BearerToken != ""),
		zap.Bool("server_openai_key", cfg.OpenAI.APIKey != ""),
	)

	return service, nil
}

// initRedis connects to Redis when enabled; nil client means in-process fallbacks
func initRedis(ctx context.Context, cfg *config.Config) (*redisAdapter.Client, error) {
	if !cfg.Redis.Enabled {
		logger.Info("redis disabled, per-chat keys unavailable")
		return nil, nil
	}

	client, err := redisAdapter.New(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// initTelegram starts the bot when a token is configured
func initTelegram(ctx context.Context, cfg *config.Config, service *analysis.Service, redisClient *redisAdapter.Client) (*telegram.Bot, error) {
	if !cfg.TelegramEnabled() {
		logger.Info("telegram bot disabled")
		return nil, nil
	}

	var (
		store  telegram.CredentialStore
		locker redisAdapter.Locker = redisAdapter.NewLocalLocker()
	)
	if redisClient != nil {
		cipher, err := crypto.NewCipher(cfg.Credentials.Secret)
		if err != nil {
			return nil, fmt.Errorf("failed to create credentials cipher: %w", err)
		}
		store = redisAdapter.NewCredentialStore(redisClient.Cache(), cipher, cfg.Credentials.TTL)
		// lock outlives the analysis deadline so a slow run is never doubled
		locker = redisClient.Locker(cfg.Analysis.Timeout + 30*time.Second)
	}

	handler, err := telegram.NewHandler(service, store, locker, telegram.HandlerConfig{
		Timeout: cfg.Analysis.Timeout,
		KeysTTL: cfg.Credentials.TTL,
	})
	if err != nil {
		return nil, err
	}

	bot, err := telegram.NewBot(&cfg.Telegram, handler)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := bot.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("telegram bot error", zap.Error(err))
		}
	}()

	logger.Info("telegram bot started")
	return bot, nil
}

// initNotifier builds usage alerts for allowed chats; nil when the bot is off
func initNotifier(cfg *config.Config, bot *telegram.Bot) workers.UsageNotifier {
	if bot == nil || len(cfg.Telegram.AllowedChats) == 0 {
		return nil
	}

	notifier, err := telegram.NewNotifier(bot, cfg.Telegram.AllowedChats)
	if err != nil {
		logger.Error("failed to create usage notifier", zap.Error(err))
		return nil
	}
	return notifier
}
