package risk

import (
	"errors"
	"math"

	"github.com/rs/zerolog"
)

// ErrInsufficientCapital means the account cannot afford even the minimum
// notional at the configured leverage.
var ErrInsufficientCapital = errors.New("balance too small for minimum notional at configured leverage")

// Sizer converts account balance and stop distance into an order quantity.
// The notional is chosen so that a stop-out loses RiskPerTrade of the
// balance, then capped by leverage and floored by the exchange minimum.
type Sizer struct {
	RiskPerTrade float64
	Leverage     int
	MinNotional  float64
	Step         float64

	log zerolog.Logger
}

// NewSizer builds a sizer; step is the exchange LOT_SIZE increment.
func NewSizer(riskPerTrade float64, leverage int, minNotional, step float64, log zerolog.Logger) *Sizer {
	return &Sizer{
		RiskPerTrade: riskPerTrade,
		Leverage:     leverage,
		MinNotional:  minNotional,
		Step:         step,
		log:          log.With().Str("component", "sizer").Logger(),
	}
}

// Quantity returns the order quantity for a trade with the given stop
// distance (as a fraction of entry price). Returns ErrInsufficientCapital
// when no affordable quantity satisfies the exchange minimum.
func (s *Sizer) Quantity(balance, price, stopDistancePct float64) (float64, error) {
	if balance <= 0 || price <= 0 || stopDistancePct <= 0 {
		return 0, ErrInsufficientCapital
	}

	riskAmount := balance * s.RiskPerTrade
	notional := riskAmount / stopDistancePct

	maxNotional := balance * float64(s.Leverage)
	if notional > maxNotional {
		notional = maxNotional
	}

	if notional < s.MinNotional {
		// Margin check: the minimum notional is only affordable if the margin
		// it requires fits in the balance.
		if s.MinNotional/float64(s.Leverage) > balance {
			return 0, ErrInsufficientCapital
		}
		s.log.Debug().
			Float64("notional", notional).
			Float64("min_notional", s.MinNotional).
			Msg("raising order to exchange minimum notional")
		notional = s.MinNotional
	}

	qty := s.truncate(notional / price)
	if qty <= 0 || qty*price < s.MinNotional {
		return 0, ErrInsufficientCapital
	}
	return qty, nil
}

// truncate rounds the quantity down to the exchange step. Rounding down
// never risks more than intended.
func (s *Sizer) truncate(qty float64) float64 {
	if s.Step <= 0 {
		return qty
	}
	return math.Floor(qty/s.Step) * s.Step
}
