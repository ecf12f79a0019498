package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/internal/adapters/config"
	"github.com/selivandex/sentiment-gate/pkg/logger"
)

// Bot represents Telegram bot transport for the command handler
type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     *config.TelegramConfig
	handler *Handler
}

// NewBot creates new Telegram bot
func NewBot(cfg *config.TelegramConfig, handler *Handler) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("telegram bot initialized",
		zap.String("username", api.Self.UserName),
		zap.Int("allowed_chats", len(cfg.AllowedChats)),
	)

	return &Bot{
		api:     api,
		cfg:     cfg,
		handler: handler,
	}, nil
}

// Start starts listening for commands
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	logger.Info("telegram bot started, listening for commands")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			if !b.cfg.ChatAllowed(update.Message.Chat.ID) {
				logger.Debug("ignoring message from chat not in allow list",
					zap.Int64("chat_id", update.Message.Chat.ID),
				)
				continue
			}

			go b.handleCommand(ctx, update.Message)
		}
	}
}

// handleCommand processes incoming commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	if !message.IsCommand() {
		return
	}

	chatID := message.Chat.ID
	command := message.Command()

	if command == "analyze" || command == "a" {
		if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
			logger.Debug("failed to send typing action", zap.Error(err))
		}
	}

	reply := b.handler.Handle(ctx, chatID, command, message.CommandArguments())

	if reply.DeleteCommand {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, message.MessageID)); err != nil {
			logger.Warn("failed to delete message with keys",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
		}
	}

	if err := b.SendMessage(chatID, reply.Text); err != nil {
		logger.Error("failed to send telegram response", zap.Error(err))
	}
}

// SendMessage sends HTML text message
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// Close closes bot connection
func (b *Bot) Close() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
		logger.Info("telegram bot stopped")
	}
}
