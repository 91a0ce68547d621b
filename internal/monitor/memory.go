// Package monitor classifies polling ticks into quiet, routine, and emergency events.
package monitor

import (
	"time"

	"github.com/rewired-gh/marketsentry/internal/models"
)

// PriceSample is one observed price.
type PriceSample struct {
	Time  time.Time
	Price float64
}

// Memory is the per-asset alert state. It lives for the process lifetime
// and is only touched from the sequential tick loop.
type Memory struct {
	samples     []PriceSample
	seen        map[string]time.Time
	lastReport  time.Time
	baseline    float64
	hasBaseline bool
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]time.Time)}
}

// Samples returns a copy of the retained price window.
func (m *Memory) Samples() []PriceSample {
	out := make([]PriceSample, len(m.samples))
	copy(out, m.samples)
	return out
}

// Seen reports whether a news ID has already been surfaced.
func (m *Memory) Seen(id string) bool {
	_, ok := m.seen[id]
	return ok
}

// SeenCount is the size of the seen-news set.
func (m *Memory) SeenCount() int {
	return len(m.seen)
}

// LastReport is the time of the last full report, zero if none.
func (m *Memory) LastReport() time.Time {
	return m.lastReport
}

// Baseline returns the last alerted price.
func (m *Memory) Baseline() (float64, bool) {
	return m.baseline, m.hasBaseline
}

// reference is the price a new sample is compared against: the last
// alerted price, or before any dispatch the latest retained sample.
func (m *Memory) reference() (float64, bool) {
	if m.hasBaseline {
		return m.baseline, true
	}
	if n := len(m.samples); n > 0 {
		return m.samples[n-1].Price, true
	}
	return 0, false
}

// prune drops samples older than retention and seen entries whose item can
// no longer be fresh.
func (m *Memory) prune(now time.Time, retention, freshness time.Duration) {
	cutoff := now.Add(-retention)
	i := 0
	for i < len(m.samples) && m.samples[i].Time.Before(cutoff) {
		i++
	}
	if i > 0 {
		m.samples = append(m.samples[:0], m.samples[i:]...)
	}

	for id, published := range m.seen {
		if now.Sub(published) >= freshness {
			delete(m.seen, id)
		}
	}
}

func (m *Memory) appendSample(at time.Time, price float64) {
	m.samples = append(m.samples, PriceSample{Time: at, Price: price})
}

// markSeen adds item to the seen set and reports whether it was new.
func (m *Memory) markSeen(item models.NewsItem) bool {
	if _, ok := m.seen[item.ID]; ok {
		return false
	}
	m.seen[item.ID] = item.Published
	return true
}

func (m *Memory) window() (low, high float64) {
	for i, s := range m.samples {
		if i == 0 || s.Price < low {
			low = s.Price
		}
		if i == 0 || s.Price > high {
			high = s.Price
		}
	}
	return low, high
}
