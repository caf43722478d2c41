package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alias1177/ZeroEmotion/config"
	"github.com/Alias1177/ZeroEmotion/internal/calculate"
	"github.com/Alias1177/ZeroEmotion/internal/exchange"
	"github.com/Alias1177/ZeroEmotion/internal/regime"
	"github.com/Alias1177/ZeroEmotion/internal/risk"
	"github.com/Alias1177/ZeroEmotion/internal/session"
	"github.com/Alias1177/ZeroEmotion/internal/strategy"
	"github.com/Alias1177/ZeroEmotion/models"
)

// maxConsecutiveFailures is how many cycles in a row may fail before the
// engine gives up and exits.
const maxConsecutiveFailures = 5

// Notifier pushes human-readable events to the operator.
type Notifier interface {
	Send(text string)
}

// Options wires an Engine together.
type Options struct {
	Config    *config.Config
	Exchange  exchange.Exchange
	State     *session.State
	Selector  *regime.Selector
	Trend     strategy.Strategy
	Reversion strategy.Strategy
	Sizer     *risk.Sizer
	Breaker   *risk.CircuitBreaker
	Notifier  Notifier
	Logger    zerolog.Logger
}

// Engine runs the trading loop: poll candles, compute indicators, pick the
// regime, evaluate the active strategy and manage the single position.
type Engine struct {
	cfg       *config.Config
	ex        exchange.Exchange
	state     *session.State
	selector  *regime.Selector
	trend     strategy.Strategy
	reversion strategy.Strategy
	sizer     *risk.Sizer
	breaker   *risk.CircuitBreaker
	notifier  Notifier
	log       zerolog.Logger

	position         *models.Position
	lastMode         regime.Mode
	lastClose        time.Time
	proximityAlerted bool
	sizerWarned      bool
	failures         int
}

func New(opts Options) *Engine {
	return &Engine{
		cfg:       opts.Config,
		ex:        opts.Exchange,
		state:     opts.State,
		selector:  opts.Selector,
		trend:     opts.Trend,
		reversion: opts.Reversion,
		sizer:     opts.Sizer,
		breaker:   opts.Breaker,
		notifier:  opts.Notifier,
		log:       opts.Logger.With().Str("component", "engine").Logger(),
	}
}

// Run executes trading cycles until the context is cancelled, the operator
// stops the bot, the daily circuit breaker trips, or too many cycles fail in
// a row. Open positions are left protected by their exchange-side stop and
// target orders.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	// The stop and breaker gates run before every cycle, the first included.
	for {
		if !e.state.IsRunning() {
			e.log.Info().Msg("stopped by operator")
			e.notifier.Send("🛑 Bot stopped. Open positions keep their stop and target orders.")
			return nil
		}
		if e.breaker.Check(e.state.DailyPnL()) {
			e.log.Warn().
				Float64("daily_pnl", e.state.DailyPnL()).
				Float64("limit", e.breaker.Limit()).
				Msg("daily loss limit reached")
			e.notifier.Send(fmt.Sprintf(
				"⛔ <b>Daily loss limit reached</b>\nRealized PnL: %.2f USDT (limit %.2f)\nTrading halted until restart.",
				e.state.DailyPnL(), e.breaker.Limit()))
			return nil
		}
		if err := e.cycle(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			e.log.Info().Msg("context cancelled, stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle runs one iteration, folding errors into the consecutive-failure
// counter. It only returns an error when the engine should terminate.
func (e *Engine) cycle(ctx context.Context) error {
	if err := e.runCycle(ctx); err != nil {
		e.failures++
		e.log.Error().Err(err).Int("consecutive", e.failures).Msg("cycle failed")
		if e.failures >= maxConsecutiveFailures {
			e.notifier.Send(fmt.Sprintf("💥 %d cycles failed in a row, shutting down. Last error: %v",
				e.failures, err))
			return fmt.Errorf("%d consecutive cycle failures: %w", e.failures, err)
		}
		return nil
	}
	e.failures = 0
	return nil
}

func (e *Engine) runCycle(ctx context.Context) error {
	candles, err := e.ex.FetchCandles(ctx, e.cfg.Symbol, e.cfg.Timeframe, e.cfg.CandleLimit)
	if err != nil {
		return err
	}

	rows, err := calculate.BuildFrame(candles, calculate.Params{
		EMAFast:   e.cfg.EMAFast,
		EMASlow:   e.cfg.EMASlow,
		EMAFilter: e.cfg.RSIEMAFilter,
		RSIPeriod: e.cfg.RSILength,
		ADXPeriod: e.cfg.ADXPeriod,
	})
	if errors.Is(err, calculate.ErrWaitingData) {
		e.log.Info().Int("candles", len(candles)).Msg("indicators warming up")
		return nil
	}
	if err != nil {
		return err
	}

	prev, last := rows[len(rows)-2], rows[len(rows)-1]
	price := last.Close

	mode := e.selector.Update(last.ADX, e.state.Override())
	if e.lastMode != "" && mode != e.lastMode {
		e.notifier.Send(fmt.Sprintf("🔄 Regime switch: %s → %s (ADX %.1f)", e.lastMode, mode, last.ADX))
	}
	e.lastMode = mode

	active := e.reversion
	if mode == regime.ModeTrend {
		active = e.trend
	}
	signal := active.Evaluate(prev, last)

	balance, err := e.ex.FetchBalance(ctx)
	if err != nil {
		return err
	}
	e.state.SetBalance(balance)
	e.state.SetMarket(price, last.RSI, last.ADX, mode, active.Name())

	status := "SCANNING"
	if e.position != nil {
		status = "IN POSITION"
	}
	e.log.Info().
		Bool("live", e.cfg.IsLive()).
		Str("status", status).
		Float64("price", price).
		Float64("rsi", last.RSI).
		Float64("adx", last.ADX).
		Str("mode", string(mode)).
		Str("strategy", active.Name()).
		Str("signal", string(signal)).
		Float64("balance", balance).
		Msg("cycle")

	// A restarted process has no local position but the exchange may still
	// hold one; pick it up before managing or entering.
	if e.cfg.IsLive() && e.position == nil {
		if err := e.adoptExchangePosition(ctx, mode); err != nil {
			return err
		}
	}

	if e.position != nil {
		if err := e.managePosition(ctx, price); err != nil {
			return err
		}
	}

	if e.position == nil && signal != models.SignalNone {
		e.tryEnter(ctx, signal, mode, price, balance)
	}

	e.state.SetPosition(e.position)
	return nil
}

// managePosition checks for a close, then moves the trailing stop and fires
// the proximity alert while the position is still open.
func (e *Engine) managePosition(ctx context.Context, price float64) error {
	closed, exitPrice, reason, err := e.detectClose(ctx, price)
	if err != nil {
		return err
	}
	if closed {
		e.handleClose(ctx, exitPrice, reason)
		return nil
	}

	e.trailStop(ctx, price)
	e.checkProximity(price)
	return nil
}

// detectClose reports whether the exchange-side stop or target fired. Live
// positions are checked against the exchange; paper positions against the
// locally recorded trigger prices.
func (e *Engine) detectClose(ctx context.Context, price float64) (bool, float64, string, error) {
	pos := e.position

	if e.cfg.IsLive() {
		qty, _, err := e.ex.FetchPosition(ctx, e.cfg.Symbol)
		if err != nil {
			return false, 0, "", err
		}
		if qty != 0 {
			return false, 0, "", nil
		}
		// Closed on the exchange; the surviving trigger order must go.
		if err := e.ex.CancelAllOrders(ctx, e.cfg.Symbol); err != nil {
			e.log.Warn().Err(err).Msg("cancel orders after close")
		}
		// The trigger order's actual fill price is not fetched; the last bar
		// close stands in for it in the realized PnL.
		reason := "stop loss"
		if pos.UnrealizedPct(price) > 0 {
			reason = "take profit"
		}
		return true, price, reason, nil
	}

	stopHit := pos.Side == models.SideLong && price <= pos.StopPrice ||
		pos.Side == models.SideShort && price >= pos.StopPrice
	targetHit := pos.Side == models.SideLong && price >= pos.TargetPrice ||
		pos.Side == models.SideShort && price <= pos.TargetPrice

	if !stopHit && !targetHit {
		return false, 0, "", nil
	}

	reason := "stop loss"
	if targetHit && !stopHit {
		reason = "take profit"
	}
	res, err := e.ex.PlaceMarketOrder(ctx, e.cfg.Symbol, pos.Side.Opposite(), pos.Quantity)
	if err != nil {
		return false, 0, "", fmt.Errorf("close simulated position: %w", err)
	}
	return true, res.AvgPrice, reason, nil
}

func (e *Engine) handleClose(ctx context.Context, exitPrice float64, reason string) {
	pos := e.position
	pnl := pos.RealizedPnL(exitPrice)
	daily := e.state.AddRealizedPnL(pnl)

	e.log.Info().
		Str("side", string(pos.Side)).
		Float64("entry", pos.EntryPrice).
		Float64("exit", exitPrice).
		Float64("pnl", pnl).
		Float64("daily_pnl", daily).
		Str("reason", reason).
		Msg("position closed")

	icon := "✅"
	if pnl < 0 {
		icon = "❌"
	}
	e.notifier.Send(fmt.Sprintf(
		"%s <b>Position closed</b> (%s)\n%s %s\nEntry: %.4f → Exit: %.4f\nPnL: %+.2f USDT\nDaily PnL: %+.2f USDT",
		icon, reason, e.cfg.Symbol, pos.Side, pos.EntryPrice, exitPrice, pnl, daily))

	e.position = nil
	e.lastClose = time.Now()
	e.proximityAlerted = false
	e.sizerWarned = false
}

// trailStop ratchets the protective stop once the position is in profit by
// the trigger amount. The stop only ever tightens.
func (e *Engine) trailStop(ctx context.Context, price float64) {
	pos := e.position
	if pos.UnrealizedPct(price) < e.cfg.TrailingTrigger {
		return
	}

	var candidate float64
	if pos.Side == models.SideLong {
		candidate = price * (1 - e.cfg.TrailingStep)
		if candidate <= pos.StopPrice {
			return
		}
	} else {
		candidate = price * (1 + e.cfg.TrailingStep)
		if candidate >= pos.StopPrice {
			return
		}
	}

	if err := e.ex.CancelAllOrders(ctx, e.cfg.Symbol); err != nil {
		e.log.Warn().Err(err).Msg("cancel orders before trailing")
		return
	}
	if err := e.ex.PlaceProtectiveStop(ctx, e.cfg.Symbol, pos.Side, candidate); err != nil {
		e.log.Error().Err(err).Msg("re-arm trailing stop")
		e.notifier.Send("⚠️ Failed to move the trailing stop, position may be unprotected!")
		return
	}
	if err := e.ex.PlaceTakeProfit(ctx, e.cfg.Symbol, pos.Side, pos.TargetPrice); err != nil {
		e.log.Warn().Err(err).Msg("re-arm take profit")
	}

	old := pos.StopPrice
	pos.StopPrice = candidate
	e.log.Info().Float64("from", old).Float64("to", candidate).Msg("trailing stop moved")
	e.notifier.Send(fmt.Sprintf("📈 Trailing stop moved: %.4f → %.4f", old, candidate))
}

// checkProximity warns once per position when price approaches the stop.
func (e *Engine) checkProximity(price float64) {
	if e.proximityAlerted {
		return
	}
	pos := e.position

	var distance float64
	if pos.Side == models.SideLong {
		distance = (price - pos.StopPrice) / price
	} else {
		distance = (pos.StopPrice - price) / price
	}
	if distance <= 0 || distance > e.cfg.AlertProximity {
		return
	}

	e.proximityAlerted = true
	e.notifier.Send(fmt.Sprintf("⚠️ Price %.4f is %.2f%% from the stop %.4f",
		price, distance*100, pos.StopPrice))
}

// adoptExchangePosition resumes managing a position the exchange already
// holds, e.g. after a restart. Stop and target are rebuilt from the entry
// price with the current regime widths.
func (e *Engine) adoptExchangePosition(ctx context.Context, mode regime.Mode) error {
	qty, entry, err := e.ex.FetchPosition(ctx, e.cfg.Symbol)
	if err != nil {
		return err
	}
	if qty == 0 {
		return nil
	}

	side := models.SideLong
	if qty < 0 {
		side = models.SideShort
		qty = -qty
	}
	stopPct, targetPct := e.exitWidths(mode)
	stopPrice := entry * (1 - stopPct)
	targetPrice := entry * (1 + targetPct)
	if side == models.SideShort {
		stopPrice = entry * (1 + stopPct)
		targetPrice = entry * (1 - targetPct)
	}

	e.position = &models.Position{
		Side:        side,
		EntryPrice:  entry,
		Quantity:    qty,
		StopPrice:   stopPrice,
		TargetPrice: targetPrice,
		OpenedAt:    time.Now(),
	}
	e.proximityAlerted = false

	e.log.Info().
		Str("side", string(side)).
		Float64("entry", entry).
		Float64("qty", qty).
		Msg("resumed existing exchange position")
	e.notifier.Send(fmt.Sprintf(
		"♻️ <b>Resumed existing position</b>\n%s %s %.4f @ %.4f\nStop: %.4f, Target: %.4f",
		e.cfg.Symbol, side, qty, entry, stopPrice, targetPrice))
	return nil
}

func (e *Engine) exitWidths(mode regime.Mode) (stopPct, targetPct float64) {
	if mode == regime.ModeTrend {
		return e.cfg.TrendStopPct, e.cfg.TrendTargetPct
	}
	return e.cfg.RangeStopPct, e.cfg.RangeTargetPct
}

// tryEnter opens a position for the signal. Entry failures leave the bot
// flat; protective-order failures keep the position but warn loudly.
func (e *Engine) tryEnter(ctx context.Context, signal models.Signal, mode regime.Mode, price, balance float64) {
	if !e.lastClose.IsZero() && time.Since(e.lastClose) < e.cfg.Cooldown {
		e.log.Debug().Str("signal", string(signal)).Msg("in cooldown, skipping entry")
		return
	}

	// The exchange is the source of truth in live mode: never stack an entry
	// onto a position the local state does not know about.
	if e.cfg.IsLive() {
		qty, _, err := e.ex.FetchPosition(ctx, e.cfg.Symbol)
		if err != nil {
			e.log.Warn().Err(err).Msg("position check before entry failed")
			return
		}
		if qty != 0 {
			e.log.Warn().Float64("qty", qty).Msg("exchange already reports a position, skipping entry")
			return
		}
	}

	stopPct, targetPct := e.exitWidths(mode)

	qty, err := e.sizer.Quantity(balance, price, stopPct)
	if err != nil {
		if !e.sizerWarned {
			e.sizerWarned = true
			e.log.Warn().Err(err).Float64("balance", balance).Msg("cannot size order")
			e.notifier.Send(fmt.Sprintf("⚠️ Signal %s skipped: %v", signal, err))
		}
		return
	}

	side := models.SideLong
	if signal == models.SignalShort {
		side = models.SideShort
	}

	res, err := e.ex.PlaceMarketOrder(ctx, e.cfg.Symbol, side, qty)
	if err != nil {
		e.log.Error().Err(err).Msg("entry order failed")
		e.notifier.Send(fmt.Sprintf("❌ Entry order failed: %v", err))
		return
	}

	entry := res.AvgPrice
	if entry <= 0 {
		entry = price
	}
	filled := res.Quantity
	if filled <= 0 {
		filled = qty
	}

	var stopPrice, targetPrice float64
	if side == models.SideLong {
		stopPrice = entry * (1 - stopPct)
		targetPrice = entry * (1 + targetPct)
	} else {
		stopPrice = entry * (1 + stopPct)
		targetPrice = entry * (1 - targetPct)
	}

	if err := e.ex.PlaceProtectiveStop(ctx, e.cfg.Symbol, side, stopPrice); err != nil {
		e.log.Error().Err(err).Msg("place protective stop")
		e.notifier.Send("🚨 <b>Stop order failed, position is UNPROTECTED!</b> Intervene manually.")
	}
	if err := e.ex.PlaceTakeProfit(ctx, e.cfg.Symbol, side, targetPrice); err != nil {
		e.log.Error().Err(err).Msg("place take profit")
		e.notifier.Send("⚠️ Take-profit order failed, only the stop is armed.")
	}

	e.position = &models.Position{
		Side:        side,
		EntryPrice:  entry,
		Quantity:    filled,
		StopPrice:   stopPrice,
		TargetPrice: targetPrice,
		OpenedAt:    time.Now(),
	}
	e.proximityAlerted = false

	notional := e.position.Notional()
	e.log.Info().
		Str("side", string(side)).
		Float64("entry", entry).
		Float64("qty", filled).
		Float64("stop", stopPrice).
		Float64("target", targetPrice).
		Msg("position opened")
	e.notifier.Send(fmt.Sprintf(
		"🚀 <b>New position</b>\n%s %s x%d\nEntry: %.4f\nStop: %.4f\nTarget: %.4f\nNotional: %.2f USDT (margin %.2f)",
		e.cfg.Symbol, side, e.cfg.Leverage, entry, stopPrice, targetPrice,
		notional, notional/float64(e.cfg.Leverage)))
}
