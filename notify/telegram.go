// Package notify delivers operator alerts.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram sends alerts to one chat through a bot.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewTelegram authenticates the bot against the public API.
func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, tgbot.APIEndpoint, chatID, log)
}

// NewTelegramWithEndpoint is NewTelegram against another API endpoint, in
// the "<base>/bot%s/%s" form.
func NewTelegramWithEndpoint(token, endpoint string, chatID int64, log *zap.Logger) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram: missing token")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram: missing chat id")
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := &http.Client{Timeout: 10 * time.Second}
	b, err := tgbot.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Info("telegram bot authorized", zap.String("bot", b.Self.UserName))
	return &Telegram{bot: b, chatID: chatID, log: log}, nil
}

// Alert posts msg to the configured chat.
func (t *Telegram) Alert(_ context.Context, msg string) error {
	m := tgbot.NewMessage(t.chatID, msg)
	m.DisableWebPagePreview = true
	if _, err := t.bot.Send(m); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
