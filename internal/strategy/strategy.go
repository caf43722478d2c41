package strategy

import "github.com/Alias1177/ZeroEmotion/models"

// Strategy turns two consecutive indicator rows into a trade signal.
// Implementations are pure: no state, no side effects.
type Strategy interface {
	Name() string
	Evaluate(prev, last models.IndicatorRow) models.Signal
}

// EMACross signals on the bar where the fast EMA crosses the slow EMA.
// Edge-triggered: a cross fires exactly once, holding above or below after
// the cross produces no further signals.
type EMACross struct{}

func (EMACross) Name() string { return "TREND (EMA Cross)" }

func (EMACross) Evaluate(prev, last models.IndicatorRow) models.Signal {
	if prev.EMAFast <= prev.EMASlow && last.EMAFast > last.EMASlow {
		return models.SignalLong
	}
	if prev.EMAFast >= prev.EMASlow && last.EMAFast < last.EMASlow {
		return models.SignalShort
	}
	return models.SignalNone
}

// RSIReversion signals on RSI extremes, vetoed by the filter EMA: oversold
// only counts above the filter, overbought only below it. Level-triggered on
// the latest row alone.
type RSIReversion struct {
	LongThreshold  float64
	ShortThreshold float64
}

func (RSIReversion) Name() string { return "RANGE (RSI Reversion)" }

func (r RSIReversion) Evaluate(_, last models.IndicatorRow) models.Signal {
	if last.RSI < r.LongThreshold && last.Close > last.EMAFilter {
		return models.SignalLong
	}
	if last.RSI > r.ShortThreshold && last.Close < last.EMAFilter {
		return models.SignalShort
	}
	return models.SignalNone
}
