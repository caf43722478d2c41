package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Alias1177/ZeroEmotion/config"
	"github.com/Alias1177/ZeroEmotion/internal/engine"
	"github.com/Alias1177/ZeroEmotion/internal/exchange"
	"github.com/Alias1177/ZeroEmotion/internal/regime"
	"github.com/Alias1177/ZeroEmotion/internal/risk"
	"github.com/Alias1177/ZeroEmotion/internal/session"
	"github.com/Alias1177/ZeroEmotion/internal/strategy"
	"github.com/Alias1177/ZeroEmotion/internal/telegram"
)

func init() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, relying on actual environment variables")
	}
}

func main() {
	cfg := config.Load()

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.SetFlags(0)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()

	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		logger.Fatal().Msg("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set")
	}
	if cfg.IsLive() && (cfg.APIKey == "" || cfg.SecretKey == "") {
		logger.Fatal().Msg("BINANCE_API_KEY and BINANCE_SECRET_KEY must be set for LIVE mode")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	logger.Info().Str("username", bot.Self.UserName).Msg("Authorized on Telegram")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := exchange.NewClient(exchange.ClientOptions{
		APIKey:    cfg.APIKey,
		SecretKey: cfg.SecretKey,
		Testnet:   cfg.Testnet,
		Timeout:   cfg.RequestTimeout,
		Logger:    logger,
	})

	var ex exchange.Exchange = client
	if !cfg.IsLive() {
		// Paper mode still reads real candles through the live client.
		ex = exchange.NewPaper(client, cfg.PaperBalance, logger)
		logger.Info().Float64("balance", cfg.PaperBalance).Msg("running in DRY_RUN mode, no real orders")
	} else {
		if err := ex.SetLeverage(ctx, cfg.Symbol, cfg.Leverage); err != nil {
			logger.Fatal().Err(err).Msg("Failed to set leverage")
		}
	}

	step, tick := cfg.QuantityStep, cfg.PriceTick
	if cfg.IsLive() {
		if s, tk, err := client.FetchSymbolFilters(ctx, cfg.Symbol); err != nil {
			logger.Warn().Err(err).
				Float64("step", step).
				Float64("tick", tick).
				Msg("exchange info unavailable, using configured filters")
		} else {
			step, tick = s, tk
		}
	}
	client.SetPriceTick(tick)

	balance, err := ex.FetchBalance(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to fetch initial balance")
	}
	logger.Info().Float64("balance", balance).Str("symbol", cfg.Symbol).Msg("starting")

	state := session.NewState(cfg.Symbol, cfg.IsLive())
	state.SetBalance(balance)

	notifier := telegram.NewNotifier(bot, cfg.TelegramChatID, logger)
	listener := telegram.NewListener(bot, cfg.TelegramChatID, state, logger)
	breaker := risk.NewCircuitBreaker(balance, cfg.MaxDailyLoss, cfg.MinLossFloor)

	eng := engine.New(engine.Options{
		Config:    cfg,
		Exchange:  ex,
		State:     state,
		Selector:  regime.NewSelector(cfg.ADXThreshold, cfg.ADXBuffer),
		Trend:     strategy.EMACross{},
		Reversion: strategy.RSIReversion{LongThreshold: cfg.RSILongThreshold, ShortThreshold: cfg.RSIShortThreshold},
		Sizer:     risk.NewSizer(cfg.RiskPerTrade, cfg.Leverage, cfg.MinNotional, step, logger),
		Breaker:   breaker,
		Notifier:  notifier,
		Logger:    logger,
	})

	go listener.Run(ctx)

	execMode := "DRY RUN 🧪"
	if cfg.IsLive() {
		execMode = "LIVE 🔥"
	}
	notifier.Send(fmt.Sprintf(
		"🤖 <b>Bot started</b>\nPair: %s (%s, x%d)\nMode: %s\nStrategy: Hybrid (ADX Switcher)\nBalance: %.2f USDT\nDaily loss limit: %.2f USDT",
		cfg.Symbol, cfg.Timeframe, cfg.Leverage, execMode, balance, breaker.Limit()))

	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("engine terminated")
		os.Exit(1)
	}
	if ctx.Err() != nil {
		notifier.Send("🛑 Bot shut down (signal received). Open positions keep their protective orders.")
	}
	logger.Info().Msg("shutdown complete")
}
