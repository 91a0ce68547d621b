// Package advisor produces trade recommendations from AI providers, failing
// over between candidates and degrading to a keyword heuristic.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rewired-gh/marketsentry/internal/logger"
	"github.com/rewired-gh/marketsentry/internal/models"
)

// ErrAllProvidersFailed is returned alongside the heuristic fallback when
// every candidate failed with a retryable error.
var ErrAllProvidersFailed = errors.New("all AI providers failed")

// ErrorClass tells the chain whether trying the next candidate can help.
type ErrorClass int

const (
	Retryable ErrorClass = iota
	NonRetryable
	Transport
)

func (c ErrorClass) String() string {
	switch c {
	case NonRetryable:
		return "non_retryable"
	case Transport:
		return "transport"
	default:
		return "retryable"
	}
}

// ProviderError is a classified provider failure.
type ProviderError struct {
	Provider string
	Class    ErrorClass
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Prompt is the text sent to a provider.
type Prompt struct {
	System string
	User   string
}

// Provider is one candidate in the failover list.
type Provider interface {
	Name() string
	Attempt(ctx context.Context, prompt Prompt) (models.Recommendation, error)
}

// Input is everything a recommendation is based on.
type Input struct {
	Asset    string
	Features models.FeatureVector
	Risk     models.RiskLevels
	EMACross string
	News     []models.NewsItem
	Reason   string
	Template Template
}

// Outcome labels for attempt observers.
const (
	OutcomeSuccess = "success"
)

// Chain tries providers in order and falls back to the heuristic.
type Chain struct {
	providers []Provider
	heuristic *Heuristic
	observe   func(provider, outcome string)
}

type ChainOption func(*Chain)

// WithObserver reports every attempt with its outcome.
func WithObserver(fn func(provider, outcome string)) ChainOption {
	return func(c *Chain) { c.observe = fn }
}

// WithHeuristic replaces the default keyword heuristic.
func WithHeuristic(h *Heuristic) ChainOption {
	return func(c *Chain) { c.heuristic = h }
}

func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		providers: providers,
		heuristic: NewHeuristic(),
		observe:   func(string, string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers returns the candidate names in order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Advise always returns a usable recommendation. err is non-nil when the
// recommendation came from the fallback: it carries the non-retryable
// provider error, or ErrAllProvidersFailed.
func (c *Chain) Advise(ctx context.Context, in Input) (rec models.Recommendation, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = models.Recommendation{
				Action:    models.ActionWait,
				Reasoning: fmt.Sprintf("Analysis unavailable: advice generation failed (%v).", r),
				Source:    models.SourceHeuristic,
			}
			err = fmt.Errorf("advice generation panicked: %v", r)
		}
	}()

	prompt := BuildPrompt(in)

	var failures []string
	for _, p := range c.providers {
		if ctx.Err() != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), ctx.Err()))
			break
		}

		rec, err := p.Attempt(ctx, prompt)
		if err == nil {
			c.observe(p.Name(), OutcomeSuccess)
			rec.Source = p.Name()
			return rec, nil
		}

		class := Transport
		var perr *ProviderError
		if errors.As(err, &perr) {
			class = perr.Class
		}
		c.observe(p.Name(), class.String())

		if class == NonRetryable {
			logger.Error("Provider %s rejected the request, abandoning provider chain: %v", p.Name(), err)
			return c.heuristic.Recommend(in, err), err
		}
		logger.Warn("Provider %s failed (%s), trying next candidate: %v", p.Name(), class, err)
		failures = append(failures, err.Error())
	}

	cause := fmt.Errorf("%w: %s", ErrAllProvidersFailed, strings.Join(failures, "; "))
	if len(c.providers) == 0 {
		cause = fmt.Errorf("%w: no providers configured", ErrAllProvidersFailed)
	}
	return c.heuristic.Recommend(in, cause), cause
}
