package risk

import (
	"errors"
	"math"
	"testing"
)

func TestCalculate_Scenario(t *testing.T) {
	got, err := Calculate(80.00, 2.00, ShortHorizon)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"long stop", got.Long.Stop, 77.00},
		{"long target", got.Long.Target, 85.00},
		{"short stop", got.Short.Stop, 83.00},
		{"short target", got.Short.Target, 75.00},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if !got.Available {
		t.Error("Available = false, want true")
	}
}

func TestCalculate_Ordering(t *testing.T) {
	prices := []float64{0.5, 12.3, 80, 1999.99}
	atrs := []float64{0.01, 0.7, 2, 45}
	presets := []Multipliers{ShortHorizon, Swing, {Stop: 0.1, Target: 0.2}}

	for _, p := range prices {
		for _, a := range atrs {
			for _, m := range presets {
				lv, err := Calculate(p, a, m)
				if err != nil {
					t.Fatalf("Calculate(%v, %v, %+v): %v", p, a, m, err)
				}
				if !(lv.Long.Stop < p && p < lv.Long.Target) {
					t.Errorf("long ordering broken for price=%v atr=%v: %+v", p, a, lv.Long)
				}
				if !(lv.Short.Target < p && p < lv.Short.Stop) {
					t.Errorf("short ordering broken for price=%v atr=%v: %+v", p, a, lv.Short)
				}
			}
		}
	}
}

func TestCalculate_Unavailable(t *testing.T) {
	tests := []struct {
		name       string
		price, atr float64
	}{
		{"NaN ATR", 80, math.NaN()},
		{"NaN price", math.NaN(), 2},
		{"negative ATR", 80, -1},
		{"infinite ATR", 80, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lv, err := Calculate(tt.price, tt.atr, Swing)
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("err = %v, want ErrUnavailable", err)
			}
			if lv.Available {
				t.Error("Available = true, want false")
			}
		})
	}
}

func TestPreset(t *testing.T) {
	if m, ok := Preset("swing"); !ok || m != Swing {
		t.Errorf("Preset(swing) = %+v, %v", m, ok)
	}
	if m, ok := Preset("short_horizon"); !ok || m != ShortHorizon {
		t.Errorf("Preset(short_horizon) = %+v, %v", m, ok)
	}
	if _, ok := Preset("scalp"); ok {
		t.Error("Preset(scalp) ok = true, want false")
	}
}
