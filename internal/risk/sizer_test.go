package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func newTestSizer(riskPerTrade float64, leverage int, minNotional, step float64) *Sizer {
	return NewSizer(riskPerTrade, leverage, minNotional, step, zerolog.Nop())
}

func TestSizerQuantity(t *testing.T) {
	tests := []struct {
		name    string
		sizer   *Sizer
		balance float64
		price   float64
		stopPct float64
		want    float64
		wantErr bool
	}{
		{
			// risk 0.40 USDT / 1% stop -> notional 40 -> qty 0.40 at price 100
			name:    "plain risk sizing",
			sizer:   newTestSizer(0.02, 4, 6.0, 0.01),
			balance: 20, price: 100, stopPct: 0.01,
			want: 0.40,
		},
		{
			// risk 0.40 / 0.1% stop -> notional 400, capped at 20*4=80 -> qty 0.80
			name:    "leverage cap",
			sizer:   newTestSizer(0.02, 4, 6.0, 0.01),
			balance: 20, price: 100, stopPct: 0.001,
			want: 0.80,
		},
		{
			// risk 0.40 / 10% stop -> notional 4, below min 6, margin 1.5 fits -> qty 0.06
			name:    "raised to minimum notional",
			sizer:   newTestSizer(0.02, 4, 6.0, 0.01),
			balance: 20, price: 100, stopPct: 0.10,
			want: 0.06,
		},
		{
			// min notional 6 needs 1.5 margin at 4x, balance only 1
			name:    "cannot afford minimum",
			sizer:   newTestSizer(0.02, 4, 6.0, 0.01),
			balance: 1, price: 100, stopPct: 0.10,
			wantErr: true,
		},
		{
			// 40/87 = 0.4597..., truncated down to step
			name:    "truncated to step",
			sizer:   newTestSizer(0.02, 4, 6.0, 0.01),
			balance: 20, price: 87, stopPct: 0.01,
			want: 0.45,
		},
		{
			// coarse step truncates the minimum notional to zero quantity
			name:    "step truncates to zero",
			sizer:   newTestSizer(0.02, 4, 6.0, 1.0),
			balance: 20, price: 1000, stopPct: 0.10,
			wantErr: true,
		},
		{
			name:    "zero balance",
			sizer:   newTestSizer(0.02, 4, 6.0, 0.01),
			balance: 0, price: 100, stopPct: 0.01,
			wantErr: true,
		},
		{
			name:    "zero stop distance",
			sizer:   newTestSizer(0.02, 4, 6.0, 0.01),
			balance: 20, price: 100, stopPct: 0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sizer.Quantity(tt.balance, tt.price, tt.stopPct)
			if tt.wantErr {
				if !errors.Is(err, ErrInsufficientCapital) {
					t.Fatalf("err = %v, want ErrInsufficientCapital", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Quantity: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Quantity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSizerNeverRisksMoreThanConfigured(t *testing.T) {
	s := newTestSizer(0.02, 4, 6.0, 0.01)

	balances := []float64{10, 20, 55, 100, 1234}
	stops := []float64{0.005, 0.012, 0.018, 0.05}
	for _, b := range balances {
		for _, stop := range stops {
			qty, err := s.Quantity(b, 100, stop)
			if err != nil {
				continue
			}
			loss := qty * 100 * stop
			riskBudget := b * s.RiskPerTrade
			// The min-notional floor can legitimately push risk above the
			// budget, but never beyond what the floor itself implies.
			allowed := math.Max(riskBudget, s.MinNotional*stop)
			if loss > allowed+1e-9 {
				t.Errorf("balance %v stop %v: stop-out loss %v exceeds %v", b, stop, loss, allowed)
			}
		}
	}
}

func TestCircuitBreaker(t *testing.T) {
	b := NewCircuitBreaker(100, 0.06, 1.0)
	if b.Limit() != 6.0 {
		t.Fatalf("limit = %v, want 6.0", b.Limit())
	}

	if b.Check(-5.99) {
		t.Error("tripped at -5.99, limit is 6.0")
	}
	if !b.Check(-6.0) {
		t.Error("did not trip at exactly -6.0")
	}
	// Latched: recovering PnL does not reset it.
	if !b.Check(0) {
		t.Error("breaker reset after recovery, want latched")
	}
	if !b.Tripped() {
		t.Error("Tripped() = false after trip")
	}
}

func TestCircuitBreakerFloor(t *testing.T) {
	b := NewCircuitBreaker(5, 0.06, 1.0)
	if b.Limit() != 1.0 {
		t.Fatalf("limit = %v, want floor 1.0", b.Limit())
	}
	if b.Check(-0.5) {
		t.Error("tripped below the floor")
	}
	if !b.Check(-1.0) {
		t.Error("did not trip at the floor")
	}
}
