// Package sentry runs the per-asset watch cycle: fetch bars and headlines,
// derive indicators, classify the tick, ask for advice and deliver reports.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/marketsentry/internal/advisor"
	"github.com/rewired-gh/marketsentry/internal/chart"
	"github.com/rewired-gh/marketsentry/internal/indicator"
	"github.com/rewired-gh/marketsentry/internal/logger"
	"github.com/rewired-gh/marketsentry/internal/metrics"
	"github.com/rewired-gh/marketsentry/internal/models"
	"github.com/rewired-gh/marketsentry/internal/monitor"
	"github.com/rewired-gh/marketsentry/internal/risk"
)

// MarketSource provides OHLC bars.
type MarketSource interface {
	FetchBars(ctx context.Context, symbol, period, interval string) ([]models.Bar, error)
}

// NewsSource provides headlines. It never fails; an empty list is fine.
type NewsSource interface {
	Fetch(ctx context.Context, query string) []models.NewsItem
}

// Advisor produces a recommendation. The recommendation is usable even
// when err is non-nil.
type Advisor interface {
	Advise(ctx context.Context, in advisor.Input) (models.Recommendation, error)
}

// ChartRenderer draws the report snapshot.
type ChartRenderer interface {
	Render(title string, bars []models.Bar, ov chart.Overlays) ([]byte, error)
}

// Notifier delivers a report.
type Notifier interface {
	SendReport(ctx context.Context, report models.Report) error
}

// Gate decides whether the market is open.
type Gate interface {
	Open(t time.Time) bool
}

// Asset is one watched instrument.
type Asset struct {
	Symbol    string
	Name      string
	NewsQuery string
	Period    string
	Interval  string
	Monitor   monitor.Config
	Risk      risk.Multipliers
	Template  advisor.Template
	ChartBars int
}

type Config struct {
	Assets      []Asset
	AssetPause  time.Duration
	TickTimeout time.Duration
	Indicators  indicator.Config
	// Headlines caps how many headlines are attached to a report.
	Headlines int
}

// Deps are the collaborators. Chart, Gate and Metrics are optional.
type Deps struct {
	Market   MarketSource
	News     NewsSource
	Advisor  Advisor
	Chart    ChartRenderer
	Notifier Notifier
	Gate     Gate
	Metrics  *metrics.Recorder
}

// Outcome summarizes what a tick did.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeQuiet
	OutcomeSuppressed
	OutcomeDispatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeQuiet:
		return "quiet"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeDispatched:
		return "dispatched"
	default:
		return "skipped"
	}
}

// TickResult is returned by Tick for callers and tests.
type TickResult struct {
	Symbol   string
	Outcome  Outcome
	Decision monitor.Decision
	Report   *models.Report
}

type assetState struct {
	asset      Asset
	classifier *monitor.Classifier
	memory     *monitor.Memory
	log        *logger.Logger
}

type snapshot struct {
	price      float64
	class      string
	at         time.Time
	lastReport time.Time
	err        string
}

// Sentry owns the per-asset memories. Ticks must not run concurrently;
// Status is safe to call from any goroutine.
type Sentry struct {
	cfg    Config
	deps   Deps
	assets []*assetState

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	status map[string]snapshot
}

func New(cfg Config, deps Deps) (*Sentry, error) {
	if deps.Market == nil || deps.News == nil || deps.Advisor == nil || deps.Notifier == nil {
		return nil, errors.New("sentry: market, news, advisor and notifier are required")
	}
	if len(cfg.Assets) == 0 {
		return nil, errors.New("sentry: no assets configured")
	}

	s := &Sentry{
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		sleep:  sleepContext,
		status: make(map[string]snapshot, len(cfg.Assets)),
	}
	for _, a := range cfg.Assets {
		s.assets = append(s.assets, &assetState{
			asset:      a,
			classifier: monitor.New(a.Monitor),
			memory:     monitor.NewMemory(),
			log:        logger.With("symbol", a.Symbol),
		})
	}
	return s, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunCycle ticks every asset in order, pausing between them. Per-asset
// failures are joined into the returned error; one failing asset does not
// stop the others.
func (s *Sentry) RunCycle(ctx context.Context) error {
	start := s.now()
	logger.Info("Starting sentry cycle for %d asset(s)", len(s.assets))

	var errs []error
	for i, st := range s.assets {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.AssetPause); err != nil {
				errs = append(errs, err)
				break
			}
		}
		if _, err := s.tick(ctx, st); err != nil {
			errs = append(errs, err)
		}
	}

	logger.Info("Sentry cycle completed in %v", s.now().Sub(start))
	return errors.Join(errs...)
}

// Tick runs a single tick for the asset with the given symbol.
func (s *Sentry) Tick(ctx context.Context, symbol string) (TickResult, error) {
	for _, st := range s.assets {
		if st.asset.Symbol == symbol {
			return s.tick(ctx, st)
		}
	}
	return TickResult{}, fmt.Errorf("unknown asset %q", symbol)
}

func (s *Sentry) tick(ctx context.Context, st *assetState) (res TickResult, err error) {
	a := st.asset
	res.Symbol = a.Symbol
	started := s.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick %s panicked: %v", a.Symbol, r)
		}
		if err != nil {
			s.deps.Metrics.TickError(a.Symbol)
			s.setError(a.Symbol, started, err)
			st.log.Error("Tick failed: %v", err)
		}
		s.deps.Metrics.ObserveTick(a.Symbol, s.now().Sub(started))
	}()

	if s.deps.Gate != nil && !s.deps.Gate.Open(started) {
		st.log.Debug("Market closed, skipping tick")
		return res, nil
	}

	if s.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TickTimeout)
		defer cancel()
	}

	var (
		bars []models.Bar
		news []models.NewsItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.deps.Market.FetchBars(gctx, a.Symbol, a.Period, a.Interval)
		if err != nil {
			return fmt.Errorf("fetch bars for %s: %w", a.Symbol, err)
		}
		if err := models.ValidateBars(b); err != nil {
			return fmt.Errorf("bars for %s: %w", a.Symbol, err)
		}
		bars = b
		return nil
	})
	g.Go(func() error {
		if a.NewsQuery != "" {
			news = s.deps.News.Fetch(gctx, a.NewsQuery)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return res, err
	}

	features := indicator.Compute(a.Symbol, bars, s.cfg.Indicators)
	if !models.Defined(features.Price) {
		return res, fmt.Errorf("no usable price for %s", a.Symbol)
	}
	s.deps.Metrics.Price(a.Symbol, features.Price)

	now := s.now()
	d := st.classifier.Classify(st.memory, monitor.Tick{Time: now, Price: features.Price, News: news})
	res.Decision = d
	s.deps.Metrics.Tick(a.Symbol, d.Class.String())
	s.setStatus(a.Symbol, features.Price, d.Class.String(), now, st.memory.LastReport())

	if !d.Dispatchable() {
		res.Outcome = OutcomeQuiet
		st.log.Info("Market is quiet at $%.2f (move %.2f)", features.Price, d.Move)
		return res, nil
	}
	st.log.Info("Waking advisor: %s", d.Reason)

	levels, rerr := risk.Calculate(features.Price, features.ATR, a.Risk)
	if rerr != nil {
		st.log.Warn("Risk levels unavailable: %v", rerr)
	}
	cross := emaCross(features, s.cfg.Indicators.EMAPeriods)

	headlines := news
	if s.cfg.Headlines > 0 && len(headlines) > s.cfg.Headlines {
		headlines = headlines[:s.cfg.Headlines]
	}

	rec, aerr := s.deps.Advisor.Advise(ctx, advisor.Input{
		Asset:    a.Name,
		Features: features,
		Risk:     levels,
		EMACross: cross,
		News:     headlines,
		Reason:   d.Reason,
		Template: a.Template,
	})
	if aerr != nil {
		st.log.Warn("Advisor degraded to %s: %v", rec.Source, aerr)
	}

	if !st.classifier.ShouldDispatch(d, rec) {
		st.classifier.RecordSuppressed(st.memory, now)
		s.deps.Metrics.Suppressed(a.Symbol)
		s.setStatus(a.Symbol, features.Price, d.Class.String(), now, st.memory.LastReport())
		res.Outcome = OutcomeSuppressed
		st.log.Info("Routine report held back by quality gate (risk %q, parsed %v)", rec.Risk, rec.Parsed)
		return res, nil
	}

	report := models.Report{
		ID:             uuid.NewString(),
		Asset:          a.Name,
		Symbol:         a.Symbol,
		Time:           now,
		Trigger:        d.Trigger,
		Reason:         d.Reason,
		Emergency:      d.Class == monitor.Emergency,
		Features:       features,
		EMACross:       cross,
		Risk:           levels,
		Recommendation: rec,
		Headlines:      headlines,
	}
	report.Chart = s.renderChart(st, bars)

	if err := s.deps.Notifier.SendReport(ctx, report); err != nil {
		return res, fmt.Errorf("deliver %s report for %s: %w", d.Trigger, a.Symbol, err)
	}

	st.classifier.RecordDispatched(st.memory, now, features.Price)
	s.deps.Metrics.Dispatch(a.Symbol, string(d.Trigger))
	s.setStatus(a.Symbol, features.Price, d.Class.String(), now, st.memory.LastReport())
	st.log.Info("Report %s sent (%s, %s from %s)", report.ID, d.Trigger, rec.Action, rec.Source)

	res.Outcome = OutcomeDispatched
	res.Report = &report
	return res, nil
}

// renderChart returns nil when no chart can be drawn.
func (s *Sentry) renderChart(st *assetState, bars []models.Bar) []byte {
	if s.deps.Chart == nil {
		return nil
	}
	view := bars
	if n := st.asset.ChartBars; n > 0 && len(view) > n {
		view = view[len(view)-n:]
	}
	offset := len(bars) - len(view)

	ema := make(map[int][]float64, len(s.cfg.Indicators.EMAPeriods))
	for _, p := range s.cfg.Indicators.EMAPeriods {
		ema[p] = indicator.EMASeries(bars, p)[offset:]
	}
	support, resistance := indicator.SupportResistance(bars, s.cfg.Indicators.SRLookback)

	title := fmt.Sprintf("%s (%s) %s", st.asset.Name, st.asset.Symbol, st.asset.Interval)
	img, err := s.deps.Chart.Render(title, view, chart.Overlays{EMA: ema, Support: support, Resistance: resistance})
	if err != nil {
		st.log.Warn("Chart unavailable: %v", err)
		return nil
	}
	return img
}

// emaCross compares the two shortest configured EMA periods.
func emaCross(f models.FeatureVector, periods []int) string {
	if len(periods) < 2 {
		return "UNAVAILABLE"
	}
	p := append([]int(nil), periods...)
	sort.Ints(p)
	return f.EMACross(p[0], p[1])
}

func (s *Sentry) setStatus(symbol string, price float64, class string, at, lastReport time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[symbol] = snapshot{price: price, class: class, at: at, lastReport: lastReport}
}

func (s *Sentry) setError(symbol string, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.status[symbol]
	snap.at = at
	snap.err = err.Error()
	s.status[symbol] = snap
}

// Status renders a short per-asset summary for the /status command.
func (s *Sentry) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Market sentry status\n")
	for _, st := range s.assets {
		a := st.asset
		snap, ok := s.status[a.Symbol]
		if !ok {
			fmt.Fprintf(&b, "%s (%s): no ticks yet\n", a.Name, a.Symbol)
			continue
		}
		if snap.err != "" {
			fmt.Fprintf(&b, "%s (%s): last tick %s failed: %s\n", a.Name, a.Symbol, clock(snap.at), snap.err)
			continue
		}
		fmt.Fprintf(&b, "%s (%s): $%.2f %s at %s, last report %s\n",
			a.Name, a.Symbol, snap.price, snap.class, clock(snap.at), clock(snap.lastReport))
	}
	return strings.TrimRight(b.String(), "\n")
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format("15:04 MST")
}
