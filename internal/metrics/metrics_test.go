package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	r := New()
	r.Tick("CL=F", "quiet")
	r.Tick("CL=F", "quiet")
	r.Tick("CL=F", "emergency")
	r.Dispatch("CL=F", "price_spike")
	r.ProviderAttempt("gemini", "retryable")
	r.ProviderAttempt("openrouter", "success")
	r.Price("CL=F", 80.6)
	r.ObserveTick("CL=F", 1500*time.Millisecond)

	if got := testutil.ToFloat64(r.ticks.WithLabelValues("CL=F", "quiet")); got != 2 {
		t.Errorf("quiet ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.dispatches.WithLabelValues("CL=F", "price_spike")); got != 1 {
		t.Errorf("dispatches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.lastPrice.WithLabelValues("CL=F")); got != 80.6 {
		t.Errorf("last price = %v, want 80.6", got)
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`marketsentry_provider_attempts_total{outcome="retryable",provider="gemini"} 1`,
		`marketsentry_tick_duration_seconds_count{symbol="CL=F"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Tick("x", "quiet")
	r.Dispatch("x", "scheduled")
	r.Suppressed("x")
	r.ProviderAttempt("p", "success")
	r.TickError("x")
	r.Price("x", 1)
	r.ObserveTick("x", time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}
