package calculate

import (
	"errors"
	"math"

	"github.com/Alias1177/ZeroEmotion/models"
)

// ErrWaitingData is returned when the candle window is too short to produce
// at least two fully-defined indicator rows.
var ErrWaitingData = errors.New("insufficient data: indicators still warming up")

// Params holds the lookback lengths for one frame build.
type Params struct {
	EMAFast   int
	EMASlow   int
	EMAFilter int
	RSIPeriod int
	ADXPeriod int
}

// EMASeries returns an exponential moving average aligned 1:1 with values.
// Entries before the warm-up index (period-1) are NaN. The first defined
// value is the SMA seed, the rest follow the standard recursive form.
func EMASeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}

// RSISeries returns the Wilder-smoothed relative strength index aligned 1:1
// with closes. Entries before index `period` are NaN.
func RSISeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ADXSeries returns the average directional index aligned 1:1 with candles.
// Entries before index 2*period-1 are NaN: Wilder needs one period for the
// smoothed DM/TR sums and a second one for the first DX average.
func ADXSeries(candles []models.Candle, period int) []float64 {
	out := nanSlice(len(candles))
	if period <= 0 || len(candles) < 2*period {
		return out
	}

	tr := make([]float64, len(candles))
	plusDM := make([]float64, len(candles))
	minusDM := make([]float64, len(candles))

	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}

		tr1 := candles[i].High - candles[i].Low
		tr2 := math.Abs(candles[i].High - candles[i-1].Close)
		tr3 := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	// Initial smoothed sums over the first `period` bars of movement.
	var smTR, smPlusDM, smMinusDM float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlusDM += plusDM[i]
		smMinusDM += minusDM[i]
	}

	dx := make([]float64, len(candles))
	dx[period] = dxValue(smPlusDM, smMinusDM, smTR)

	for i := period + 1; i < len(candles); i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlusDM = smPlusDM - smPlusDM/float64(period) + plusDM[i]
		smMinusDM = smMinusDM - smMinusDM/float64(period) + minusDM[i]
		dx[i] = dxValue(smPlusDM, smMinusDM, smTR)
	}

	// First ADX is the plain average of the first `period` DX values, then
	// Wilder smoothing takes over.
	var dxSum float64
	for i := period; i < 2*period; i++ {
		dxSum += dx[i]
	}
	out[2*period-1] = dxSum / float64(period)

	for i := 2 * period; i < len(candles); i++ {
		out[i] = (out[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return out
}

func dxValue(smPlusDM, smMinusDM, smTR float64) float64 {
	if smTR == 0 {
		return 0
	}
	plusDI := smPlusDM / smTR * 100
	minusDI := smMinusDM / smTR * 100
	if plusDI+minusDI == 0 {
		return 0
	}
	return math.Abs(plusDI-minusDI) / (plusDI + minusDI) * 100
}

// BuildFrame computes every indicator over the candle window and returns the
// rows where all of them are defined, aligned with the tail of the window.
// Pure function of its input. Returns ErrWaitingData when fewer than two
// fully-defined rows remain.
func BuildFrame(candles []models.Candle, p Params) ([]models.IndicatorRow, error) {
	if len(candles) < 2 {
		return nil, ErrWaitingData
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	rsi := RSISeries(closes, p.RSIPeriod)
	adx := ADXSeries(candles, p.ADXPeriod)
	emaFast := EMASeries(closes, p.EMAFast)
	emaSlow := EMASeries(closes, p.EMASlow)
	emaFilter := EMASeries(closes, p.EMAFilter)

	var rows []models.IndicatorRow
	for i := range candles {
		if anyNaN(rsi[i], adx[i], emaFast[i], emaSlow[i], emaFilter[i]) {
			continue
		}
		rows = append(rows, models.IndicatorRow{
			Close:     closes[i],
			RSI:       rsi[i],
			ADX:       adx[i],
			EMAFast:   emaFast[i],
			EMASlow:   emaSlow[i],
			EMAFilter: emaFilter[i],
		})
	}

	if len(rows) < 2 {
		return nil, ErrWaitingData
	}
	return rows, nil
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func anyNaN(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
