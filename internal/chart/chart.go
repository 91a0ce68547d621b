// Package chart renders candlestick snapshots attached to reports.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fogleman/gg"
	"github.com/samber/lo"

	"github.com/rewired-gh/marketsentry/internal/models"
)

// ErrNotEnoughBars is returned when there is nothing meaningful to draw.
var ErrNotEnoughBars = errors.New("not enough bars to render chart")

const (
	DefaultBars   = 60
	defaultWidth  = 1000
	defaultHeight = 560
	margin        = 48.0
)

// Overlays are drawn on top of the candles. EMA series must be aligned
// with the full bar slice passed to Render; NaN points are skipped.
type Overlays struct {
	EMA        map[int][]float64
	Support    float64
	Resistance float64
}

// Renderer draws PNG charts.
type Renderer struct {
	bars   int
	width  int
	height int
}

// NewRenderer draws the last n bars (n <= 0 uses DefaultBars).
func NewRenderer(n int) *Renderer {
	if n <= 0 {
		n = DefaultBars
	}
	return &Renderer{bars: n, width: defaultWidth, height: defaultHeight}
}

var emaColors = [][3]float64{
	{0.98, 0.62, 0.11},
	{0.20, 0.55, 0.95},
	{0.75, 0.35, 0.90},
}

// Render draws title, candles and overlays for the tail of bars.
func (r *Renderer) Render(title string, bars []models.Bar, ov Overlays) ([]byte, error) {
	if len(bars) < 2 {
		return nil, ErrNotEnoughBars
	}
	offset := 0
	if len(bars) > r.bars {
		offset = len(bars) - r.bars
	}
	view := bars[offset:]

	low := lo.MinBy(view, func(a, b models.Bar) bool { return a.Low < b.Low }).Low
	high := lo.MaxBy(view, func(a, b models.Bar) bool { return a.High > b.High }).High
	for _, v := range []float64{ov.Support, ov.Resistance} {
		if drawable(v) {
			low, high = math.Min(low, v), math.Max(high, v)
		}
	}
	if high == low {
		high, low = high+0.5, low-0.5
	}
	pad := (high - low) * 0.05
	low, high = low-pad, high+pad

	w, h := float64(r.width), float64(r.height)
	plotW, plotH := w-2*margin, h-2*margin
	step := plotW / float64(len(view))
	x := func(i int) float64 { return margin + step*(float64(i)+0.5) }
	y := func(p float64) float64 { return margin + plotH*(high-p)/(high-low) }

	dc := gg.NewContext(r.width, r.height)
	dc.SetRGB(0.08, 0.09, 0.11)
	dc.Clear()

	// grid
	dc.SetRGBA(1, 1, 1, 0.08)
	dc.SetLineWidth(1)
	for i := 0; i <= 4; i++ {
		p := low + (high-low)*float64(i)/4
		dc.DrawLine(margin, y(p), w-margin, y(p))
		dc.Stroke()
		dc.SetRGBA(1, 1, 1, 0.6)
		dc.DrawStringAnchored(fmt.Sprintf("%.2f", p), w-margin+4, y(p), 0, 0.5)
		dc.SetRGBA(1, 1, 1, 0.08)
	}

	body := math.Max(1, step*0.6)
	for i, b := range view {
		if b.Close >= b.Open {
			dc.SetRGB(0.15, 0.75, 0.45)
		} else {
			dc.SetRGB(0.92, 0.30, 0.30)
		}
		dc.SetLineWidth(1)
		dc.DrawLine(x(i), y(b.High), x(i), y(b.Low))
		dc.Stroke()
		top, bottom := math.Max(b.Open, b.Close), math.Min(b.Open, b.Close)
		dc.DrawRectangle(x(i)-body/2, y(top), body, math.Max(1, y(bottom)-y(top)))
		dc.Fill()
	}

	for k, period := range sortedPeriods(ov.EMA) {
		series := ov.EMA[period]
		c := emaColors[k%len(emaColors)]
		dc.SetRGB(c[0], c[1], c[2])
		dc.SetLineWidth(2)
		started := false
		for i := range view {
			j := offset + i
			if j >= len(series) || !models.Defined(series[j]) {
				started = false
				continue
			}
			if started {
				dc.LineTo(x(i), y(series[j]))
			} else {
				dc.MoveTo(x(i), y(series[j]))
				started = true
			}
		}
		dc.Stroke()
		dc.DrawString(fmt.Sprintf("EMA %d", period), margin+float64(k)*80, h-margin/3)
	}

	drawLevel := func(v float64, label string, rgb [3]float64) {
		if !drawable(v) {
			return
		}
		dc.SetRGB(rgb[0], rgb[1], rgb[2])
		dc.SetLineWidth(1.5)
		dc.SetDash(6, 4)
		dc.DrawLine(margin, y(v), w-margin, y(v))
		dc.Stroke()
		dc.SetDash()
		dc.DrawString(fmt.Sprintf("%s %.2f", label, v), margin+4, y(v)-4)
	}
	drawLevel(ov.Support, "S", [3]float64{0.3, 0.8, 0.9})
	drawLevel(ov.Resistance, "R", [3]float64{0.95, 0.75, 0.3})

	dc.SetRGB(1, 1, 1)
	dc.DrawString(title, margin, margin/2+4)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

// A zero level means the overlay was not computed.
func drawable(v float64) bool {
	return models.Defined(v) && v > 0
}

func sortedPeriods(m map[int][]float64) []int {
	keys := lo.Keys(m)
	sort.Ints(keys)
	return keys
}
