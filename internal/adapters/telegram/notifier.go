package telegram

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/models"
	"github.com/selivandex/sentiment-gate/pkg/templates"
)

// Sender delivers one message to one chat
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Notifier sends operator alerts to a fixed set of chats via Telegram
type Notifier struct {
	sender   Sender
	chats    []int64
	renderer templates.Renderer
}

// NewNotifier creates new Telegram notifier. Without chats every alert is dropped.
func NewNotifier(sender Sender, chats []int64) (*Notifier, error) {
	renderer, err := templates.NewManagerWithValidation(templateFS, []string{"usage_alert"}, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to load telegram templates: %w", err)
	}

	logger.Info("telegram notifier initialized",
		zap.Int("chats", len(chats)),
	)

	return &Notifier{
		sender:   sender,
		chats:    chats,
		renderer: renderer,
	}, nil
}

// NotifyUsage warns every chat that the X project cap is close
func (n *Notifier) NotifyUsage(_ context.Context, report *models.UsageReport) error {
	if len(n.chats) == 0 {
		logger.Debug("usage alert skipped, no alert chats configured")
		return nil
	}

	text, err := n.renderer.ExecuteTemplate("usage_alert", report)
	if err != nil {
		return err
	}

	var errs []error
	for _, chatID := range n.chats {
		if err := n.sender.SendMessage(chatID, text); err != nil {
			logger.Warn("failed to send usage alert",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
