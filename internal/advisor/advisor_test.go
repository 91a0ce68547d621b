package advisor

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/marketsentry/internal/models"
)

type fakeProvider struct {
	name  string
	rec   models.Recommendation
	err   error
	panic bool
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Attempt(_ context.Context, _ Prompt) (models.Recommendation, error) {
	f.calls++
	if f.panic {
		panic("provider exploded")
	}
	return f.rec, f.err
}

func retryable(name string) *fakeProvider {
	return &fakeProvider{name: name, err: &ProviderError{Provider: name, Class: Retryable, Status: 429, Err: errors.New("rate limited")}}
}

func neutralInput() Input {
	return Input{
		Asset:    "Crude Oil",
		Features: models.FeatureVector{Symbol: "CL=F", Price: 80, RSI: 50, ATR: 2, Trend: models.TrendBullish},
		Reason:   "Regular 30-min check",
		News:     []models.NewsItem{{ID: "1", Title: "Oil markets steady ahead of inventory data"}},
	}
}

func TestChain_FailsOverToSecondCandidate(t *testing.T) {
	first := retryable("primary")
	second := &fakeProvider{name: "secondary", rec: models.Recommendation{
		Action: models.ActionBuy, Risk: models.RiskLow, Reasoning: "ok", Parsed: true,
	}}

	var observed []string
	chain := NewChain([]Provider{first, second}, WithObserver(func(p, outcome string) {
		observed = append(observed, p+":"+outcome)
	}))

	rec, err := chain.Advise(context.Background(), neutralInput())
	if err != nil {
		t.Fatalf("Advise returned error: %v", err)
	}
	if rec.Source != "secondary" {
		t.Errorf("source = %q, want secondary", rec.Source)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}
	want := []string{"primary:retryable", "secondary:success"}
	if strings.Join(observed, ",") != strings.Join(want, ",") {
		t.Errorf("observed = %v, want %v", observed, want)
	}
}

func TestChain_AllRetryableFallsBackToHeuristic(t *testing.T) {
	a, b := retryable("a"), retryable("b")
	chain := NewChain([]Provider{a, b})

	rec, err := chain.Advise(context.Background(), neutralInput())
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("err = %v, want ErrAllProvidersFailed", err)
	}
	if rec.Action != models.ActionWait {
		t.Errorf("action = %s, want WAIT", rec.Action)
	}
	if rec.Source != models.SourceHeuristic {
		t.Errorf("source = %q", rec.Source)
	}
	if !strings.HasPrefix(rec.Reasoning, "AI analysis unavailable") {
		t.Errorf("reasoning = %q", rec.Reasoning)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", a.calls, b.calls)
	}
}

func TestChain_NonRetryableStopsChain(t *testing.T) {
	bad := &fakeProvider{name: "bad", err: &ProviderError{Provider: "bad", Class: NonRetryable, Status: 400, Err: errors.New("invalid model")}}
	next := &fakeProvider{name: "next", rec: models.Recommendation{Action: models.ActionSell, Risk: models.RiskLow, Parsed: true}}

	rec, err := NewChain([]Provider{bad, next}).Advise(context.Background(), neutralInput())
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Class != NonRetryable {
		t.Fatalf("err = %v, want non-retryable ProviderError", err)
	}
	if next.calls != 0 {
		t.Errorf("next candidate called %d times after non-retryable error", next.calls)
	}
	if rec.Source != models.SourceHeuristic {
		t.Errorf("source = %q, want heuristic", rec.Source)
	}
}

func TestChain_TransportErrorTriesNext(t *testing.T) {
	down := &fakeProvider{name: "down", err: context.DeadlineExceeded}
	up := &fakeProvider{name: "up", rec: models.Recommendation{Action: models.ActionWait, Risk: models.RiskMedium, Parsed: true}}

	rec, err := NewChain([]Provider{down, up}).Advise(context.Background(), neutralInput())
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if rec.Source != "up" {
		t.Errorf("source = %q, want up", rec.Source)
	}
}

func TestChain_NoProviders(t *testing.T) {
	rec, err := NewChain(nil).Advise(context.Background(), neutralInput())
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("err = %v", err)
	}
	if rec.Reasoning == "" {
		t.Error("empty reasoning")
	}
}

func TestChain_PanicYieldsWait(t *testing.T) {
	p := &fakeProvider{name: "boom", panic: true}
	rec, err := NewChain([]Provider{p}).Advise(context.Background(), neutralInput())
	if err == nil {
		t.Fatal("expected error after panic")
	}
	if rec.Action != models.ActionWait || !strings.HasPrefix(rec.Reasoning, "Analysis unavailable") {
		t.Errorf("rec = %+v", rec)
	}
}

func TestChain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{name: "never"}

	_, err := NewChain([]Provider{p}).Advise(ctx, neutralInput())
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Errorf("err = %v", err)
	}
	if p.calls != 0 {
		t.Errorf("provider called with cancelled context")
	}
}

func TestBuildPrompt(t *testing.T) {
	in := neutralInput()
	in.Reason = "PRICE SPIKE: moved $0.60 (80.00 → 80.60)"
	in.EMACross = "BULLISH (21 > 50)"
	in.Features.Support = 78.5
	in.Features.Resistance = math.NaN()
	in.Risk = models.RiskLevels{
		Long:      models.Levels{Stop: 77, Target: 85},
		Short:     models.Levels{Stop: 83, Target: 75},
		Available: true,
	}
	in.News = append(in.News, models.NewsItem{ID: "2", Title: "OPEC weighs cut", Published: time.Date(2026, 4, 6, 13, 0, 0, 0, time.UTC)})

	p := BuildPrompt(in)
	for _, want := range []string{
		"PRICE SPIKE: moved $0.60",
		"BULLISH (21 > 50)",
		"OPEC weighs cut",
		"$80.00",
		"78.50 / n/a",
		"stop $77.00, target $85.00",
		"stop $83.00, target $75.00",
		"intraday",
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
	if !strings.Contains(p.System, `"risk_level"`) {
		t.Error("system prompt does not describe the JSON contract")
	}

	in.Template = TemplateSwing
	in.Risk = models.RiskLevels{}
	p = BuildPrompt(in)
	if !strings.Contains(p.User, "several sessions") {
		t.Error("swing template not applied")
	}
	if !strings.Contains(p.User, "unavailable (ATR undefined)") {
		t.Error("missing risk levels not reported")
	}
}
