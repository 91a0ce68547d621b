// Package risk sizes stop-loss and take-profit levels from volatility.
package risk

import (
	"errors"

	"github.com/rewired-gh/marketsentry/internal/models"
)

// ErrUnavailable means the inputs cannot size risk (undefined price or ATR).
var ErrUnavailable = errors.New("risk levels unavailable: price or ATR undefined")

// Multipliers scale ATR into stop and target distances.
type Multipliers struct {
	Stop   float64
	Target float64
}

var (
	ShortHorizon = Multipliers{Stop: 1.5, Target: 2.5}
	Swing        = Multipliers{Stop: 2.0, Target: 3.0}
)

// Preset returns the named multiplier preset.
func Preset(mode string) (Multipliers, bool) {
	switch mode {
	case "short_horizon":
		return ShortHorizon, true
	case "swing":
		return Swing, true
	}
	return Multipliers{}, false
}

// Calculate returns long and short levels:
// long {price-k1*atr, price+k2*atr}, short {price+k1*atr, price-k2*atr}.
func Calculate(price, atr float64, m Multipliers) (models.RiskLevels, error) {
	if !models.Defined(price) || !models.Defined(atr) || atr < 0 {
		return models.RiskLevels{}, ErrUnavailable
	}
	stop := m.Stop * atr
	target := m.Target * atr
	return models.RiskLevels{
		Long:      models.Levels{Stop: price - stop, Target: price + target},
		Short:     models.Levels{Stop: price + stop, Target: price - target},
		Available: true,
	}, nil
}
