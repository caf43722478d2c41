package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Alias1177/ZeroEmotion/models"
)

// DataSource is the read-only market data dependency of the paper simulator.
// The live client satisfies it, so paper mode still sees real candles.
type DataSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// Paper simulates execution against real market data. Market orders fill at
// the last fetched close, realized PnL flows back into the simulated
// balance, and nothing ever reaches the exchange.
type Paper struct {
	mu   sync.Mutex
	data DataSource
	log  zerolog.Logger

	balance   float64
	markPrice float64

	posQty      float64 // signed, negative = short
	posEntry    float64
	stopPrice   float64
	targetPrice float64

	orderSeq int64
}

// NewPaper creates a simulator funded with the given starting balance.
func NewPaper(data DataSource, startingBalance float64, log zerolog.Logger) *Paper {
	return &Paper{
		data:    data,
		balance: startingBalance,
		log:     log.With().Str("component", "paper_exchange").Logger(),
	}
}

// FetchCandles proxies to the real data source and records the last close as
// the simulator's mark price.
func (p *Paper) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	candles, err := p.data.FetchCandles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) > 0 {
		p.mu.Lock()
		p.markPrice = candles[len(candles)-1].Close
		p.mu.Unlock()
	}
	return candles, nil
}

func (p *Paper) FetchBalance(_ context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

func (p *Paper) FetchPosition(_ context.Context, _ string) (float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.posQty, p.posEntry, nil
}

// PlaceMarketOrder fills instantly at the mark price. An order against an
// open position closes it (fully or partially) and realizes the PnL; the
// remainder, if any, opens in the new direction.
func (p *Paper) PlaceMarketOrder(_ context.Context, _ string, side models.Side, qty float64) (*models.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.markPrice <= 0 {
		return nil, fmt.Errorf("paper: no mark price yet, fetch candles first")
	}
	if qty <= 0 {
		return nil, fmt.Errorf("paper: non-positive quantity %v", qty)
	}

	signed := qty
	if side == models.SideShort {
		signed = -qty
	}

	// Closing portion first.
	if p.posQty != 0 && (p.posQty > 0) != (signed > 0) {
		closeQty := min(qty, abs(p.posQty))
		pnl := (p.markPrice - p.posEntry) * closeQty
		if p.posQty < 0 {
			pnl = -pnl
		}
		p.balance += pnl
		p.log.Info().
			Float64("qty", closeQty).
			Float64("price", p.markPrice).
			Float64("pnl", pnl).
			Msg("paper position closed")

		if p.posQty > 0 {
			p.posQty -= closeQty
		} else {
			p.posQty += closeQty
		}
		if p.posQty == 0 {
			p.posEntry = 0
			p.stopPrice = 0
			p.targetPrice = 0
		}
		// Any remainder flips into a fresh position in the new direction.
		if remainder := qty - closeQty; remainder > 0 {
			p.posQty = remainder * signedDirection(side)
			p.posEntry = p.markPrice
		}
	} else {
		// Opening or adding in the same direction: weighted average entry.
		total := abs(p.posQty) + qty
		p.posEntry = (p.posEntry*abs(p.posQty) + p.markPrice*qty) / total
		p.posQty += signed
	}

	p.orderSeq++
	return &models.OrderResult{
		ID:       "paper-" + strconv.FormatInt(p.orderSeq, 10),
		AvgPrice: p.markPrice,
		Quantity: qty,
	}, nil
}

func (p *Paper) PlaceProtectiveStop(_ context.Context, _ string, _ models.Side, stopPrice float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.posQty == 0 {
		return fmt.Errorf("paper: no position to protect")
	}
	p.stopPrice = stopPrice
	return nil
}

func (p *Paper) PlaceTakeProfit(_ context.Context, _ string, _ models.Side, targetPrice float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.posQty == 0 {
		return fmt.Errorf("paper: no position to protect")
	}
	p.targetPrice = targetPrice
	return nil
}

func (p *Paper) CancelAllOrders(_ context.Context, _ string) error {
	p.mu.Lock()
	p.stopPrice = 0
	p.targetPrice = 0
	p.mu.Unlock()
	return nil
}

func (p *Paper) SetLeverage(_ context.Context, _ string, _ int) error {
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func signedDirection(side models.Side) float64 {
	if side == models.SideShort {
		return -1
	}
	return 1
}
