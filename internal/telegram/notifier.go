package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Notifier pushes event messages to the operator chat. Sends are
// fire-and-forget: a delivery failure is logged but never propagates into
// the trading loop.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

func NewNotifier(bot *tgbotapi.BotAPI, chatID int64, log zerolog.Logger) *Notifier {
	return &Notifier{
		bot:    bot,
		chatID: chatID,
		log:    log.With().Str("component", "notifier").Logger(),
	}
}

// Send delivers one HTML-formatted message to the operator chat.
func (n *Notifier) Send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Msg("telegram send failed")
	}
}
