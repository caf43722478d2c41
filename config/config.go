package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every runtime tunable. All values come from the environment
// (a .env file is loaded by the caller before Load runs); defaults are the
// tested live settings for SOLUSDT 1h.
type Config struct {
	// Market
	Symbol      string
	Timeframe   string
	CandleLimit int

	// Account / execution
	Leverage     int
	TradingMode  string // LIVE or DRY_RUN
	PaperBalance float64
	APIKey       string
	SecretKey    string
	Testnet      bool

	// Risk
	RiskPerTrade float64
	MaxDailyLoss float64 // fraction of balance
	MinLossFloor float64 // absolute USDT floor for the daily-loss limit
	MinNotional  float64
	QuantityStep float64 // fallback when exchangeInfo is unavailable
	PriceTick    float64 // fallback when exchangeInfo is unavailable

	// Exits, per regime (TREND gets the wider widths)
	TrendStopPct    float64
	TrendTargetPct  float64
	RangeStopPct    float64
	RangeTargetPct  float64
	TrailingTrigger float64
	TrailingStep    float64
	AlertProximity  float64

	// Indicators
	ADXPeriod         int
	ADXThreshold      float64
	ADXBuffer         float64
	EMAFast           int
	EMASlow           int
	RSILength         int
	RSIEMAFilter      int
	RSILongThreshold  float64
	RSIShortThreshold float64

	// Loop
	PollInterval   time.Duration
	Cooldown       time.Duration
	RequestTimeout time.Duration

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	LogLevel string
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Symbol:      getEnv("SYMBOL", "SOLUSDT"),
		Timeframe:   getEnv("TIMEFRAME", "1h"),
		CandleLimit: getEnvInt("CANDLE_LIMIT", 300),

		Leverage:     getEnvInt("LEVERAGE", 4),
		TradingMode:  getEnv("TRADING_MODE", "LIVE"),
		PaperBalance: getEnvFloat("PAPER_BALANCE", 20.0),
		APIKey:       os.Getenv("BINANCE_API_KEY"),
		SecretKey:    os.Getenv("BINANCE_SECRET_KEY"),
		Testnet:      getEnvBool("BINANCE_TESTNET", false),

		RiskPerTrade: getEnvFloat("RISK_PER_TRADE", 0.02),
		MaxDailyLoss: getEnvFloat("MAX_DAILY_LOSS", 0.06),
		MinLossFloor: getEnvFloat("MIN_LOSS_FLOOR", 1.0),
		MinNotional:  getEnvFloat("MIN_NOTIONAL", 6.0),
		QuantityStep: getEnvFloat("QUANTITY_STEP", 0.01),
		PriceTick:    getEnvFloat("PRICE_TICK", 0.01),

		TrendStopPct:    getEnvFloat("TREND_STOP_PCT", 0.018),
		TrendTargetPct:  getEnvFloat("TREND_TARGET_PCT", 0.03),
		RangeStopPct:    getEnvFloat("RANGE_STOP_PCT", 0.012),
		RangeTargetPct:  getEnvFloat("RANGE_TARGET_PCT", 0.02),
		TrailingTrigger: getEnvFloat("TRAILING_TRIGGER", 0.015),
		TrailingStep:    getEnvFloat("TRAILING_STEP", 0.005),
		AlertProximity:  getEnvFloat("ALERT_PROXIMITY_PCT", 0.003),

		ADXPeriod:         getEnvInt("ADX_PERIOD", 14),
		ADXThreshold:      getEnvFloat("ADX_THRESHOLD", 25),
		ADXBuffer:         getEnvFloat("ADX_BUFFER", 3),
		EMAFast:           getEnvInt("EMA_FAST", 9),
		EMASlow:           getEnvInt("EMA_SLOW", 21),
		RSILength:         getEnvInt("RSI_LENGTH", 14),
		RSIEMAFilter:      getEnvInt("RSI_EMA_FILTER", 50),
		RSILongThreshold:  getEnvFloat("RSI_LONG_THRESHOLD", 30),
		RSIShortThreshold: getEnvFloat("RSI_SHORT_THRESHOLD", 70),

		PollInterval:   getEnvDuration("POLL_INTERVAL", time.Minute),
		Cooldown:       getEnvDuration("COOLDOWN", 5*time.Minute),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),

		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: getEnvInt64("TELEGRAM_CHAT_ID", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// IsLive reports whether real orders are sent to the exchange.
func (c *Config) IsLive() bool {
	return c.TradingMode == "LIVE"
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultVal
	}
	return value
}

func getEnvInt64(key string, defaultVal int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultVal
	}
	return value
}

func getEnvFloat(key string, defaultVal float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultVal
	}
	return value
}

func getEnvBool(key string, defaultVal bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultVal
	}
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultVal
	}
	return value
}
