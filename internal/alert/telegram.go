package alert

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM ALERTS - Operator notifications for events needing a human
// ═══════════════════════════════════════════════════════════════════════════════

// Notifier pushes messages to a Telegram chat. A nil Notifier is a valid
// no-op, so callers never need to branch on whether alerting is configured.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier connects to Telegram, or returns nil when token is empty
func NewNotifier(token string, chatID int64) *Notifier {
	if token == "" || chatID == 0 {
		log.Warn().Msg("Telegram not configured, operator alerts disabled")
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Error().Err(err).Msg("Telegram connection failed, operator alerts disabled")
		return nil
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("📣 Telegram alerts enabled")
	return &Notifier{bot: bot, chatID: chatID}
}

// Alert sends a message; delivery failures are logged and swallowed
func (n *Notifier) Alert(msg string) {
	if n == nil {
		return
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, msg)); err != nil {
		log.Error().Err(err).Msg("Telegram alert delivery failed")
	}
}
