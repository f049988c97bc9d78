package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"
)

// TelegramConfig describes the bot credentials and target chat.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// TelegramNotifier pushes rendered alerts to a Telegram chat through a bot.
type TelegramNotifier struct {
	bot  *tele.Bot
	chat *tele.Chat
}

// NewTelegramNotifier validates the token against the Bot API and returns a
// Telegram channel.
func NewTelegramNotifier(cfg TelegramConfig) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{
		bot:  bot,
		chat: &tele.Chat{ID: cfg.ChatID},
	}, nil
}

// Channel reports the Telegram channel identifier.
func (n *TelegramNotifier) Channel() Channel { return ChannelTelegram }

// Notify sends the rendered event text to the configured chat.
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.bot.Send(n.chat, Render(event)); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}
