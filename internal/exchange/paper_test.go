package exchange

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alias1177/ZeroEmotion/models"
)

type stubData struct {
	candles []models.Candle
}

func (s *stubData) FetchCandles(_ context.Context, _, _ string, _ int) ([]models.Candle, error) {
	return s.candles, nil
}

func candleAt(close float64) models.Candle {
	return models.Candle{OpenTime: time.Now(), Open: close, High: close, Low: close, Close: close}
}

func TestPaperRequiresMarkPrice(t *testing.T) {
	p := NewPaper(&stubData{}, 20, zerolog.Nop())
	if _, err := p.PlaceMarketOrder(context.Background(), "SOLUSDT", models.SideLong, 1); err == nil {
		t.Fatal("order filled with no mark price")
	}
}

func TestPaperOpenCloseRealizesPnL(t *testing.T) {
	ctx := context.Background()
	data := &stubData{candles: []models.Candle{candleAt(100)}}
	p := NewPaper(data, 20, zerolog.Nop())

	if _, err := p.FetchCandles(ctx, "SOLUSDT", "1h", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := p.PlaceMarketOrder(ctx, "SOLUSDT", models.SideLong, 0.4); err != nil {
		t.Fatalf("open: %v", err)
	}

	qty, entry, _ := p.FetchPosition(ctx, "SOLUSDT")
	if qty != 0.4 || entry != 100 {
		t.Fatalf("position = %v @ %v, want 0.4 @ 100", qty, entry)
	}

	// Price moves up 5%, close with the opposite side.
	data.candles = []models.Candle{candleAt(105)}
	if _, err := p.FetchCandles(ctx, "SOLUSDT", "1h", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := p.PlaceMarketOrder(ctx, "SOLUSDT", models.SideShort, 0.4); err != nil {
		t.Fatalf("close: %v", err)
	}

	qty, _, _ = p.FetchPosition(ctx, "SOLUSDT")
	if qty != 0 {
		t.Errorf("qty after close = %v, want 0", qty)
	}
	balance, _ := p.FetchBalance(ctx)
	if math.Abs(balance-22) > 1e-9 { // 20 + 0.4*(105-100)
		t.Errorf("balance = %v, want 22", balance)
	}
}

func TestPaperShortProfitsOnDrop(t *testing.T) {
	ctx := context.Background()
	data := &stubData{candles: []models.Candle{candleAt(200)}}
	p := NewPaper(data, 50, zerolog.Nop())

	p.FetchCandles(ctx, "SOLUSDT", "1h", 10)
	p.PlaceMarketOrder(ctx, "SOLUSDT", models.SideShort, 0.1)

	data.candles = []models.Candle{candleAt(190)}
	p.FetchCandles(ctx, "SOLUSDT", "1h", 10)
	p.PlaceMarketOrder(ctx, "SOLUSDT", models.SideLong, 0.1)

	balance, _ := p.FetchBalance(ctx)
	if math.Abs(balance-51) > 1e-9 { // 50 + 0.1*(200-190)
		t.Errorf("balance = %v, want 51", balance)
	}
}

func TestPaperProtectiveOrders(t *testing.T) {
	ctx := context.Background()
	data := &stubData{candles: []models.Candle{candleAt(100)}}
	p := NewPaper(data, 20, zerolog.Nop())

	if err := p.PlaceProtectiveStop(ctx, "SOLUSDT", models.SideLong, 98); err == nil {
		t.Error("stop armed without a position")
	}

	p.FetchCandles(ctx, "SOLUSDT", "1h", 10)
	p.PlaceMarketOrder(ctx, "SOLUSDT", models.SideLong, 0.4)

	if err := p.PlaceProtectiveStop(ctx, "SOLUSDT", models.SideLong, 98); err != nil {
		t.Errorf("stop: %v", err)
	}
	if err := p.PlaceTakeProfit(ctx, "SOLUSDT", models.SideLong, 103); err != nil {
		t.Errorf("target: %v", err)
	}
	if err := p.CancelAllOrders(ctx, "SOLUSDT"); err != nil {
		t.Errorf("cancel: %v", err)
	}
}
