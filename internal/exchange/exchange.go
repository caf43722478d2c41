package exchange

import (
	"context"

	"github.com/Alias1177/ZeroEmotion/models"
)

// Exchange is the execution surface the trading loop depends on. The live
// Binance futures client and the paper simulator both implement it.
type Exchange interface {
	// FetchCandles returns up to limit closed bars, oldest first.
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)

	// FetchBalance returns the available USDT balance.
	FetchBalance(ctx context.Context) (float64, error)

	// FetchPosition returns the signed position quantity (negative = short)
	// and its entry price; qty 0 means flat.
	FetchPosition(ctx context.Context, symbol string) (qty, entry float64, err error)

	// PlaceMarketOrder opens or closes at market and returns the fill.
	PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, qty float64) (*models.OrderResult, error)

	// PlaceProtectiveStop arms a close-position stop for the given position side.
	PlaceProtectiveStop(ctx context.Context, symbol string, posSide models.Side, stopPrice float64) error

	// PlaceTakeProfit arms a close-position target for the given position side.
	PlaceTakeProfit(ctx context.Context, symbol string, posSide models.Side, targetPrice float64) error

	// CancelAllOrders removes every open order for the symbol.
	CancelAllOrders(ctx context.Context, symbol string) error

	// SetLeverage sets the account leverage for the symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}
