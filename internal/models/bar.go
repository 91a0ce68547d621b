// Package models defines the core domain entities: bars, features, news, recommendations, and reports.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Bar is a single OHLC candle.
type Bar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Validate checks bar field constraints.
func (b *Bar) Validate() error {
	if b.Time.IsZero() {
		return errors.New("bar time must be set")
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("bar prices must be finite")
		}
	}
	if b.High < b.Low {
		return errors.New("bar high must be >= low")
	}
	if b.Close <= 0 {
		return errors.New("bar close must be positive")
	}
	return nil
}

// ValidateBars checks every bar and that timestamps strictly increase.
func ValidateBars(bars []Bar) error {
	for i := range bars {
		if err := bars[i].Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !bars[i].Time.After(bars[i-1].Time) {
			return fmt.Errorf("bar %d: timestamp %s not after %s", i, bars[i].Time, bars[i-1].Time)
		}
	}
	return nil
}

// Trend is the MACD trend state.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendUnknown Trend = "UNKNOWN"
)

// FeatureVector is the indicator snapshot derived from a bar window.
// Undefined values are NaN.
type FeatureVector struct {
	Symbol     string          `json:"symbol"`
	Time       time.Time       `json:"time"`
	Price      float64         `json:"price"`
	RSI        float64         `json:"rsi"`
	MACD       float64         `json:"macd"`
	MACDSignal float64         `json:"macd_signal"`
	Trend      Trend           `json:"trend"`
	ATR        float64         `json:"atr"`
	EMA        map[int]float64 `json:"ema"`
	Support    float64         `json:"support"`
	Resistance float64         `json:"resistance"`
}

// Defined reports whether v is a usable indicator value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// EMAValue returns the EMA for period, or NaN when it was not computed.
func (f FeatureVector) EMAValue(period int) float64 {
	if v, ok := f.EMA[period]; ok {
		return v
	}
	return math.NaN()
}

// EMACross describes the fast/slow EMA relationship, e.g. "BULLISH (21 > 50)".
func (f FeatureVector) EMACross(fast, slow int) string {
	ef, es := f.EMAValue(fast), f.EMAValue(slow)
	if !Defined(ef) || !Defined(es) {
		return "UNAVAILABLE"
	}
	if ef > es {
		return fmt.Sprintf("BULLISH (%d > %d)", fast, slow)
	}
	return fmt.Sprintf("BEARISH (%d < %d)", fast, slow)
}

// Levels is a stop/target pair for one trade direction.
type Levels struct {
	Stop   float64 `json:"stop"`
	Target float64 `json:"target"`
}

// RiskLevels holds ATR-sized levels for both directions.
type RiskLevels struct {
	Long      Levels `json:"long"`
	Short     Levels `json:"short"`
	Available bool   `json:"available"`
}
