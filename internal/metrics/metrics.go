// Package metrics exposes Prometheus counters for the sentry loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketsentry"

// Recorder holds all metrics on its own registry. A nil *Recorder is a
// valid no-op recorder.
type Recorder struct {
	registry *prometheus.Registry

	ticks            *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	suppressed       *prometheus.CounterVec
	providerAttempts *prometheus.CounterVec
	tickErrors       *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	tickDuration     *prometheus.HistogramVec
}

// New registers and returns all metrics.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Ticks processed, by asset and classification",
		}, []string{"symbol", "class"}),
		dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Reports delivered, by asset and trigger",
		}, []string{"symbol", "trigger"}),
		suppressed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_total",
			Help:      "Routine reports withheld by the quality gate",
		}, []string{"symbol"}),
		providerAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "AI provider attempts, by provider and outcome",
		}, []string{"provider", "outcome"}),
		tickErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_errors_total",
			Help:      "Ticks that failed before classification",
		}, []string{"symbol"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_price",
			Help:      "Latest observed close",
		}, []string{"symbol"}),
		tickDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one tick",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"symbol"}),
	}
}

func (r *Recorder) Tick(symbol, class string) {
	if r == nil {
		return
	}
	r.ticks.WithLabelValues(symbol, class).Inc()
}

func (r *Recorder) Dispatch(symbol, trigger string) {
	if r == nil {
		return
	}
	r.dispatches.WithLabelValues(symbol, trigger).Inc()
}

func (r *Recorder) Suppressed(symbol string) {
	if r == nil {
		return
	}
	r.suppressed.WithLabelValues(symbol).Inc()
}

// ProviderAttempt matches the advisor observer signature.
func (r *Recorder) ProviderAttempt(provider, outcome string) {
	if r == nil {
		return
	}
	r.providerAttempts.WithLabelValues(provider, outcome).Inc()
}

func (r *Recorder) TickError(symbol string) {
	if r == nil {
		return
	}
	r.tickErrors.WithLabelValues(symbol).Inc()
}

func (r *Recorder) Price(symbol string, price float64) {
	if r == nil {
		return
	}
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) ObserveTick(symbol string, d time.Duration) {
	if r == nil {
		return
	}
	r.tickDuration.WithLabelValues(symbol).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
