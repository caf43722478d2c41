package models

import (
	"time"
)

// Side is the direction of a position or signal.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the closing side for a position side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Signal is the output of a strategy evaluation.
type Signal string

const (
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
	SignalNone  Signal = ""
)

// Candle represents a single closed OHLCV bar.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// IndicatorRow holds the derived values for one bar. Rows are aligned 1:1
// with the candles that survive the indicator warm-up period.
type IndicatorRow struct {
	Close     float64
	RSI       float64
	ADX       float64
	EMAFast   float64
	EMASlow   float64
	EMAFilter float64
}

// Position is the single tracked position for the configured symbol.
type Position struct {
	Side        Side
	EntryPrice  float64
	Quantity    float64
	StopPrice   float64
	TargetPrice float64
	OpenedAt    time.Time
}

// Notional returns the position size in quote currency at entry.
func (p *Position) Notional() float64 {
	return p.EntryPrice * p.Quantity
}

// UnrealizedPct returns the signed unrealized profit fraction at the given
// price (positive = in profit, regardless of side).
func (p *Position) UnrealizedPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	if p.Side == SideLong {
		return (price - p.EntryPrice) / p.EntryPrice
	}
	return (p.EntryPrice - price) / p.EntryPrice
}

// RealizedPnL returns the realized profit in quote currency for a close at
// the given exit price.
func (p *Position) RealizedPnL(exit float64) float64 {
	diff := exit - p.EntryPrice
	if p.Side == SideShort {
		diff = -diff
	}
	return diff * p.Quantity
}

// OrderResult is the acknowledgment returned by the exchange for a filled
// market order.
type OrderResult struct {
	ID       string
	AvgPrice float64
	Quantity float64
}
