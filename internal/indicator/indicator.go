// Package indicator turns an ordered bar window into a FeatureVector.
//
// Every function is pure. When the window is shorter than an indicator
// needs, the result is NaN rather than a value computed from partial data.
package indicator

import (
	"math"

	"github.com/cinar/indicator"
	"github.com/samber/lo"

	"github.com/rewired-gh/marketsentry/internal/models"
)

const (
	DefaultRSIWindow  = 14
	DefaultATRWindow  = 14
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
	DefaultSRLookback = 20
)

// Config selects indicator windows.
type Config struct {
	RSIWindow  int
	ATRWindow  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	EMAPeriods []int
	SRLookback int
}

func DefaultConfig() Config {
	return Config{
		RSIWindow:  DefaultRSIWindow,
		ATRWindow:  DefaultATRWindow,
		MACDFast:   DefaultMACDFast,
		MACDSlow:   DefaultMACDSlow,
		MACDSignal: DefaultMACDSignal,
		EMAPeriods: []int{21, 50},
		SRLookback: DefaultSRLookback,
	}
}

func closes(bars []models.Bar) []float64 {
	return lo.Map(bars, func(b models.Bar, _ int) float64 { return b.Close })
}

// RSI is Wilder's relative strength index over closes. Gains and losses
// are exponentially smoothed with alpha 1/window, seeded with the first
// bar's zero change. It needs window+1 bars. A flat window yields 50 and a
// window without losses yields 100.
func RSI(bars []models.Bar, window int) float64 {
	if window < 1 || len(bars) < window+1 {
		return math.NaN()
	}

	gains := make([]float64, len(bars))
	losses := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		d := bars[i].Close - bars[i-1].Close
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	avgGain := lo.LastOrEmpty(wilder(window, gains))
	avgLoss := lo.LastOrEmpty(wilder(window, losses))

	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	return math.Max(0, math.Min(100, rsi))
}

// wilder smooths values with alpha 1/window. An EMA of period 2n-1 has
// exactly that alpha.
func wilder(window int, values []float64) []float64 {
	return indicator.Ema(2*window-1, values)
}

// EMASeries returns the EMA of closes aligned with bars. Entries before the
// window has filled are NaN.
func EMASeries(bars []models.Bar, window int) []float64 {
	out := make([]float64, len(bars))
	if window < 1 || len(bars) < window {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	copy(out, indicator.Ema(window, closes(bars)))
	for i := 0; i < window-1; i++ {
		out[i] = math.NaN()
	}
	return out
}

// EMA returns the latest exponential moving average of closes.
func EMA(bars []models.Bar, window int) float64 {
	if window < 1 || len(bars) < window {
		return math.NaN()
	}
	return lo.LastOrEmpty(indicator.Ema(window, closes(bars)))
}

// MACD returns the latest MACD line and signal line. The signal EMA starts
// at the first defined MACD value, so slow+signal-1 bars are required.
func MACD(bars []models.Bar, fast, slow, signal int) (macd, sig float64) {
	if fast < 1 || slow <= fast || signal < 1 || len(bars) < slow+signal-1 {
		return math.NaN(), math.NaN()
	}

	c := closes(bars)
	emaFast := indicator.Ema(fast, c)
	emaSlow := indicator.Ema(slow, c)

	line := make([]float64, 0, len(c)-slow+1)
	for i := slow - 1; i < len(c); i++ {
		line = append(line, emaFast[i]-emaSlow[i])
	}
	signalLine := indicator.Ema(signal, line)

	return lo.LastOrEmpty(line), lo.LastOrEmpty(signalLine)
}

// TrendOf classifies the MACD relationship. Ties are bearish.
func TrendOf(macd, signal float64) models.Trend {
	if !models.Defined(macd) || !models.Defined(signal) {
		return models.TrendUnknown
	}
	if macd > signal {
		return models.TrendBullish
	}
	return models.TrendBearish
}

// TrueRange returns the per-bar true range. The first bar has no previous
// close and uses high-low.
func TrueRange(bars []models.Bar) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		hl := b.High - b.Low
		if i == 0 {
			tr[i] = hl
			continue
		}
		pc := bars[i-1].Close
		tr[i] = math.Max(hl, math.Max(math.Abs(b.High-pc), math.Abs(b.Low-pc)))
	}
	return tr
}

// ATR is the Wilder-smoothed average true range: the first value is the
// simple mean of window true ranges, later ones (prev*(n-1)+tr)/n.
func ATR(bars []models.Bar, window int) float64 {
	if window < 1 || len(bars) < window {
		return math.NaN()
	}
	return math.Max(0, lo.LastOrEmpty(indicator.Rma(window, TrueRange(bars))))
}

// SupportResistance returns the lowest low and highest high of the last
// lookback bars.
func SupportResistance(bars []models.Bar, lookback int) (support, resistance float64) {
	if lookback < 1 || len(bars) < lookback {
		return math.NaN(), math.NaN()
	}
	window := bars[len(bars)-lookback:]
	support = lo.Min(lo.Map(window, func(b models.Bar, _ int) float64 { return b.Low }))
	resistance = lo.Max(lo.Map(window, func(b models.Bar, _ int) float64 { return b.High }))
	return support, resistance
}

// Compute derives a fresh FeatureVector from bars.
func Compute(symbol string, bars []models.Bar, cfg Config) models.FeatureVector {
	fv := models.FeatureVector{
		Symbol: symbol,
		Price:  math.NaN(),
		EMA:    make(map[int]float64, len(cfg.EMAPeriods)),
	}
	if len(bars) > 0 {
		last := bars[len(bars)-1]
		fv.Time = last.Time
		fv.Price = last.Close
	}

	fv.RSI = RSI(bars, cfg.RSIWindow)
	fv.MACD, fv.MACDSignal = MACD(bars, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	fv.Trend = TrendOf(fv.MACD, fv.MACDSignal)
	fv.ATR = ATR(bars, cfg.ATRWindow)
	for _, p := range cfg.EMAPeriods {
		fv.EMA[p] = EMA(bars, p)
	}
	fv.Support, fv.Resistance = SupportResistance(bars, cfg.SRLookback)

	return fv
}
