// Package telegram announces finished deployment attempts to a Telegram
// chat. Notification is a best-effort step; failures are reported by the
// pipeline but never affect the deployment outcome.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/slotshift/slotshift/internal/domain"
)

// Notifier implements [domain.Notifier] over the Telegram bot API.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	app    string
}

// New creates a notifier for the given bot token and chat.
func New(token string, chatID int64, app string) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID, app: app}, nil
}

func (n *Notifier) Notify(_ context.Context, rec domain.AttemptRecord) error {
	msg := tgbotapi.NewMessage(n.chatID, FormatAttempt(n.app, rec))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatAttempt renders the one-line deploy summary sent to the chat.
func FormatAttempt(app string, rec domain.AttemptRecord) string {
	duration := rec.FinishedAt.Sub(rec.StartedAt).Round(100 * time.Millisecond)

	switch rec.Outcome {
	case domain.OutcomeSuccess:
		return fmt.Sprintf("✅ %s: release %s promoted to slot %s in %s",
			app, rec.ReleaseID, rec.Target, duration)
	case domain.OutcomeHealthFailed:
		return fmt.Sprintf("❌ %s: release %s failed health checks on slot %s; slot %s still serving (%s)",
			app, rec.ReleaseID, rec.Target, rec.Source, rec.Error)
	default:
		return fmt.Sprintf("❌ %s: deployment aborted before promotion; slot %s untouched (%s)",
			app, rec.Source, rec.Error)
	}
}
