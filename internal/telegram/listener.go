package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Alias1177/ZeroEmotion/internal/regime"
	"github.com/Alias1177/ZeroEmotion/internal/session"
)

// Listener serves the operator command surface. Every command is registered
// explicitly in the handler table; unknown input gets the help text.
type Listener struct {
	bot      *tgbotapi.BotAPI
	chatID   int64
	state    *session.State
	log      zerolog.Logger
	handlers map[string]func(args []string) string
}

func NewListener(bot *tgbotapi.BotAPI, chatID int64, state *session.State, log zerolog.Logger) *Listener {
	l := &Listener{
		bot:    bot,
		chatID: chatID,
		state:  state,
		log:    log.With().Str("component", "telegram_listener").Logger(),
	}
	l.handlers = map[string]func(args []string) string{
		"start":    l.handleHelp,
		"help":     l.handleHelp,
		"status":   l.handleStatus,
		"balance":  l.handleBalance,
		"position": l.handlePosition,
		"scan":     l.handleScan,
		"mode":     l.handleMode,
		"stop":     l.handleStop,
	}
	return l
}

// Run consumes updates until the context is cancelled. Messages from chats
// other than the configured operator chat are dropped.
func (l *Listener) Run(ctx context.Context) {
	l.registerCommands()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := l.bot.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			l.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != l.chatID {
				l.log.Warn().Int64("chat_id", update.Message.Chat.ID).Msg("command from unauthorized chat")
				continue
			}
			l.dispatch(update.Message)
		}
	}
}

func (l *Listener) dispatch(msg *tgbotapi.Message) {
	cmd := msg.Command()
	handler, ok := l.handlers[cmd]
	if !ok {
		handler = l.handleHelp
	}
	l.log.Info().Str("command", cmd).Msg("command received")

	args := strings.Fields(msg.CommandArguments())
	l.reply(handler(args))
}

func (l *Listener) reply(text string) {
	msg := tgbotapi.NewMessage(l.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := l.bot.Send(msg); err != nil {
		l.log.Warn().Err(err).Msg("reply failed")
	}
}

func (l *Listener) registerCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "status", Description: "Bot status and market view"},
		tgbotapi.BotCommand{Command: "balance", Description: "Balance and daily PnL"},
		tgbotapi.BotCommand{Command: "position", Description: "Open position details"},
		tgbotapi.BotCommand{Command: "scan", Description: "Latest indicator readings"},
		tgbotapi.BotCommand{Command: "mode", Description: "Regime override: auto, trend or range"},
		tgbotapi.BotCommand{Command: "stop", Description: "Stop the trading loop"},
	)
	if _, err := l.bot.Request(cmds); err != nil {
		l.log.Warn().Err(err).Msg("set commands failed")
	}
}

func (l *Listener) handleHelp([]string) string {
	return helpText()
}

func (l *Listener) handleStatus([]string) string {
	return statusText(l.state.Snapshot())
}

func (l *Listener) handleBalance([]string) string {
	return balanceText(l.state.Snapshot())
}

func (l *Listener) handlePosition([]string) string {
	return positionText(l.state.Snapshot())
}

func (l *Listener) handleScan([]string) string {
	return scanText(l.state.Snapshot())
}

func (l *Listener) handleMode(args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Current override: <b>%s</b>\nUsage: /mode auto|trend|range", l.state.Snapshot().Override)
	}
	switch strings.ToLower(args[0]) {
	case "auto":
		l.state.SetOverride(regime.OverrideAuto)
		return "Regime selection back to <b>AUTO</b> (ADX decides)."
	case "trend":
		l.state.SetOverride(regime.OverrideTrend)
		return "Regime forced to <b>TREND</b>."
	case "range":
		l.state.SetOverride(regime.OverrideRange)
		return "Regime forced to <b>RANGE</b>."
	default:
		return "Unknown mode. Usage: /mode auto|trend|range"
	}
}

func (l *Listener) handleStop([]string) string {
	l.state.SetRunning(false)
	return "🛑 Stopping after the current cycle. Open positions keep their protective orders."
}

func helpText() string {
	return strings.Join([]string{
		"<b>Commands</b>",
		"/status — bot status and market view",
		"/balance — balance and daily PnL",
		"/position — open position details",
		"/scan — latest indicator readings",
		"/mode auto|trend|range — regime override",
		"/stop — stop the trading loop",
	}, "\n")
}

func statusText(s session.Snapshot) string {
	running := "🟢 running"
	if !s.Running {
		running = "🔴 stopped"
	}
	execMode := "DRY RUN"
	if s.Live {
		execMode = "LIVE"
	}
	pos := "none"
	if s.Position != nil {
		pos = fmt.Sprintf("%s %.4f @ %.4f", s.Position.Side, s.Position.Quantity, s.Position.EntryPrice)
	}
	return fmt.Sprintf(
		"<b>%s</b> %s (%s)\nUptime: %s\nRegime: %s (override %s)\nStrategy: %s\nLast price: %.4f\nPosition: %s",
		s.Symbol, running, execMode, uptime(s.StartedAt), s.Mode, s.Override, s.Strategy, s.LastPrice, pos)
}

func balanceText(s session.Snapshot) string {
	return fmt.Sprintf("💰 Balance: %.2f USDT\nDaily PnL: %+.2f USDT", s.Balance, s.DailyPnL)
}

func positionText(s session.Snapshot) string {
	if s.Position == nil {
		return "No open position."
	}
	p := s.Position
	return fmt.Sprintf(
		"<b>%s %s</b>\nEntry: %.4f\nQuantity: %.4f\nStop: %.4f\nTarget: %.4f\nUnrealized: %+.2f%%\nOpened: %s",
		s.Symbol, p.Side, p.EntryPrice, p.Quantity, p.StopPrice, p.TargetPrice,
		p.UnrealizedPct(s.LastPrice)*100, p.OpenedAt.Format("2006-01-02 15:04"))
}

func scanText(s session.Snapshot) string {
	reading := "neutral"
	switch {
	case s.RSI < 30:
		reading = "oversold"
	case s.RSI > 70:
		reading = "overbought"
	}
	trend := "ranging"
	if s.Mode == regime.ModeTrend {
		trend = "trending"
	}
	return fmt.Sprintf(
		"🔍 <b>%s scan</b>\nPrice: %.4f\nRSI: %.1f (%s)\nADX: %.1f (%s)\nActive strategy: %s",
		s.Symbol, s.LastPrice, s.RSI, reading, s.ADX, trend, s.Strategy)
}

func uptime(start time.Time) string {
	return time.Since(start).Round(time.Second).String()
}
