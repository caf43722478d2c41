package strategy

import (
	"testing"

	"github.com/Alias1177/ZeroEmotion/models"
)

func row(fast, slow float64) models.IndicatorRow {
	return models.IndicatorRow{EMAFast: fast, EMASlow: slow}
}

func TestEMACross(t *testing.T) {
	tests := []struct {
		name string
		prev models.IndicatorRow
		last models.IndicatorRow
		want models.Signal
	}{
		{"bullish cross", row(10, 11), row(12, 11), models.SignalLong},
		{"bearish cross", row(12, 11), row(10, 11), models.SignalShort},
		{"cross from equality is a cross", row(11, 11), row(12, 11), models.SignalLong},
		{"already above, widening gap", row(12, 11), row(14, 11), models.SignalNone},
		{"already below, widening gap", row(10, 11), row(8, 11), models.SignalNone},
		{"touch without cross", row(10, 11), row(11, 11), models.SignalNone},
		{"flat", row(11, 11), row(11, 11), models.SignalNone},
	}

	var s EMACross
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Evaluate(tt.prev, tt.last); got != tt.want {
				t.Errorf("Evaluate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEMACrossFiresOnce(t *testing.T) {
	// A cross followed by a sustained uptrend must signal only on the cross bar.
	rows := []models.IndicatorRow{
		row(10, 11),
		row(12, 11), // cross bar
		row(13, 11.5),
		row(14, 12),
	}

	var s EMACross
	signals := 0
	for i := 1; i < len(rows); i++ {
		if s.Evaluate(rows[i-1], rows[i]) != models.SignalNone {
			signals++
		}
	}
	if signals != 1 {
		t.Errorf("got %d signals over the sequence, want exactly 1", signals)
	}
}

func TestRSIReversion(t *testing.T) {
	s := RSIReversion{LongThreshold: 30, ShortThreshold: 70}

	tests := []struct {
		name string
		last models.IndicatorRow
		want models.Signal
	}{
		{"oversold above filter", models.IndicatorRow{RSI: 25, Close: 105, EMAFilter: 100}, models.SignalLong},
		{"oversold below filter is vetoed", models.IndicatorRow{RSI: 25, Close: 95, EMAFilter: 100}, models.SignalNone},
		{"overbought below filter", models.IndicatorRow{RSI: 75, Close: 95, EMAFilter: 100}, models.SignalShort},
		{"overbought above filter is vetoed", models.IndicatorRow{RSI: 75, Close: 105, EMAFilter: 100}, models.SignalNone},
		{"neutral rsi", models.IndicatorRow{RSI: 50, Close: 105, EMAFilter: 100}, models.SignalNone},
		{"exactly at long threshold", models.IndicatorRow{RSI: 30, Close: 105, EMAFilter: 100}, models.SignalNone},
		{"exactly at short threshold", models.IndicatorRow{RSI: 70, Close: 95, EMAFilter: 100}, models.SignalNone},
		{"close equals filter", models.IndicatorRow{RSI: 25, Close: 100, EMAFilter: 100}, models.SignalNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Evaluate(models.IndicatorRow{}, tt.last); got != tt.want {
				t.Errorf("Evaluate = %q, want %q", got, tt.want)
			}
		})
	}
}
