package notify

import (
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"botfleet/pkg/logger"
)

// Notifier pushes operator-facing events: trades opened/closed,
// emergency stops, persistence failures needing manual reconcile.
type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Telegram is a passive notifier. All methods are nil-safe so wiring
// without a token degrades to log-only.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, nil
	}
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		logger.Info("[NOTIFY] %s", msg)
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("[NOTIFY] telegram send failed: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }
