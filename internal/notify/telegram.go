package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"fieldhire/internal/models"
)

// TelegramNotifier pushes admin oversight messages to a Telegram chat.
// Only admin-targeted notifications go through it; party notifications for
// farmers and suppliers fall through to the wrapped notifier.
type TelegramNotifier struct {
	bot         *tgbotapi.BotAPI
	adminChatID int64
	fallthru    *LogNotifier
	logger      *zerolog.Logger
}

func NewTelegramNotifier(botToken string, adminChatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{
		bot:         bot,
		adminChatID: adminChatID,
		fallthru:    NewLogNotifier(logger),
		logger:      logger,
	}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, targetID, category, message string) error {
	if targetID != models.NotifyTargetAdmin {
		return n.fallthru.Notify(ctx, targetID, category, message)
	}

	msg := tgbotapi.NewMessage(n.adminChatID, fmt.Sprintf("[%s] %s", category, message))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}
