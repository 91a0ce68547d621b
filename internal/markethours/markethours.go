// Package markethours skips ticks when the exchange calendar says the
// market is closed.
package markethours

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"

	"github.com/rewired-gh/marketsentry/internal/logger"
)

const DefaultMIC = "xnys"

// Gate answers whether a tick at t should run. A disabled gate always
// answers true.
type Gate struct {
	enabled     bool
	sessionOnly bool
	cal         *calendar.Calendar
	loc         *time.Location
}

// New builds a gate for the exchange identified by mic (ISO 10383, e.g.
// "xnys", "xlon"). Unknown codes fall back to DefaultMIC. With sessionOnly
// the gate also requires the regular session to be open; otherwise any
// business day passes, which suits near-24h futures.
func New(enabled bool, mic string, sessionOnly bool) *Gate {
	g := &Gate{enabled: enabled, sessionOnly: sessionOnly, loc: time.UTC}
	if !enabled {
		return g
	}

	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		mic = DefaultMIC
	}
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		logger.Warn("Unknown market identifier %q, using %s calendar", mic, DefaultMIC)
		cal = calendar.GetCalendar(DefaultMIC)
	}
	g.cal = cal
	if cal != nil && cal.Loc != nil {
		g.loc = cal.Loc
	}
	return g
}

// Open reports whether the market is trading at t.
func (g *Gate) Open(t time.Time) bool {
	if g == nil || !g.enabled {
		return true
	}
	t = t.In(g.loc)
	if g.cal == nil {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	if g.sessionOnly {
		return g.cal.IsOpen(t)
	}
	return g.cal.IsBusinessDay(t)
}

// Enabled reports whether the gate filters anything.
func (g *Gate) Enabled() bool {
	return g != nil && g.enabled
}
