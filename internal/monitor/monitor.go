package monitor

import (
	"fmt"
	"math"
	"time"

	"github.com/rewired-gh/marketsentry/internal/models"
)

type Config struct {
	// ShockThreshold is the absolute price move that counts as a spike.
	ShockThreshold  float64
	FreshnessWindow time.Duration
	ReportInterval  time.Duration
	Retention       time.Duration
	// QualityGate holds back routine reports unless the advice risk is LOW or MEDIUM.
	QualityGate bool
}

func DefaultConfig() Config {
	return Config{
		ShockThreshold:  0.50,
		FreshnessWindow: 15 * time.Minute,
		ReportInterval:  30 * time.Minute,
		Retention:       time.Hour,
		QualityGate:     false,
	}
}

// Class is the outcome of classifying one tick.
type Class int

const (
	Quiet Class = iota
	RoutineDue
	Emergency
)

func (c Class) String() string {
	switch c {
	case RoutineDue:
		return "routine_due"
	case Emergency:
		return "emergency"
	default:
		return "quiet"
	}
}

// Tick is the input for one classification.
type Tick struct {
	Time  time.Time
	Price float64
	News  []models.NewsItem
}

// Decision is the classifier's verdict for a tick.
type Decision struct {
	Class   Class
	Trigger models.Trigger
	Reason  string
	// Move is the absolute distance from the reference price, when one existed.
	Move float64
	// News is the breaking item when Trigger is breaking_news.
	News *models.NewsItem
	// WindowHigh and WindowLow span the retained price samples.
	WindowHigh float64
	WindowLow  float64
}

// Dispatchable reports whether the caller should build a report at all.
func (d Decision) Dispatchable() bool {
	return d.Class != Quiet
}

// Classifier decides whether a tick is quiet, routine-due, or an emergency.
// All state lives in the Memory passed to each call.
type Classifier struct {
	config Config
}

func New(config Config) *Classifier {
	return &Classifier{config: config}
}

func (c *Classifier) Config() Config {
	return c.config
}

// Classify prunes and extends mem's price window, then runs the shock,
// breaking-news and schedule checks in that order. Breaking items are
// marked seen immediately, whether or not the report is later delivered.
func (c *Classifier) Classify(mem *Memory, tick Tick) Decision {
	mem.prune(tick.Time, c.config.Retention, c.config.FreshnessWindow)
	ref, hasRef := mem.reference()
	mem.appendSample(tick.Time, tick.Price)

	d := Decision{Class: Quiet}
	d.WindowLow, d.WindowHigh = mem.window()

	if hasRef {
		d.Move = math.Abs(tick.Price - ref)
		if d.Move >= c.config.ShockThreshold {
			d.Class = Emergency
			d.Trigger = models.TriggerPriceSpike
			d.Reason = fmt.Sprintf("PRICE SPIKE: moved $%.2f (%.2f → %.2f)", d.Move, ref, tick.Price)
			return d
		}
	}

	for i := range tick.News {
		item := tick.News[i]
		age, ok := item.Age(tick.Time)
		if !ok || age >= c.config.FreshnessWindow {
			continue
		}
		if mem.markSeen(item) {
			d.Class = Emergency
			d.Trigger = models.TriggerBreakingNews
			d.News = &item
			d.Reason = "BREAKING NEWS: " + item.Title
			return d
		}
	}

	if mem.lastReport.IsZero() || tick.Time.Sub(mem.lastReport) >= c.config.ReportInterval {
		d.Class = RoutineDue
		d.Trigger = models.TriggerScheduled
		d.Reason = fmt.Sprintf("Regular %s check", formatInterval(c.config.ReportInterval))
	}

	return d
}

// ShouldDispatch combines the emergency override with the quality gate.
func (c *Classifier) ShouldDispatch(d Decision, rec models.Recommendation) bool {
	switch d.Class {
	case Emergency:
		return true
	case RoutineDue:
		return !c.config.QualityGate || rec.LowOrMediumRisk()
	default:
		return false
	}
}

// RecordDispatched stores a successful delivery: it restarts the report
// schedule and makes price the new shock baseline.
func (c *Classifier) RecordDispatched(mem *Memory, at time.Time, price float64) {
	mem.lastReport = at
	mem.baseline = price
	mem.hasBaseline = true
}

// RecordSuppressed restarts the report schedule for a routine check the
// quality gate held back. The shock baseline is left untouched.
func (c *Classifier) RecordSuppressed(mem *Memory, at time.Time) {
	mem.lastReport = at
}

func formatInterval(d time.Duration) string {
	if d > 0 && d%time.Minute == 0 {
		return fmt.Sprintf("%d-min", int(d/time.Minute))
	}
	return d.String()
}
