package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramSink delivers notifications to a single Telegram chat.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramSink creates a Telegram sink for the given bot token and
// chat.
func NewTelegramSink(token string, chatID int64, logger *zap.Logger) (*TelegramSink, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("Telegram sink ready", zap.String("username", bot.Self.UserName))

	return &TelegramSink{bot: bot, chatID: chatID, logger: logger}, nil
}

func (t *TelegramSink) Name() string {
	return "telegram"
}

func (t *TelegramSink) Send(n Notification) error {
	msg := tgbotapi.NewMessage(t.chatID, kindPrefix(n.Kind)+n.Message)
	_, err := t.bot.Send(msg)
	return err
}

func kindPrefix(k Kind) string {
	switch k {
	case KindSuccess:
		return "✅ "
	case KindError:
		return "❌ "
	default:
		return "💊 "
	}
}
