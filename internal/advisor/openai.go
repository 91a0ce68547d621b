package advisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/samber/lo"

	"github.com/rewired-gh/marketsentry/internal/models"
)

// ProviderConfig describes one OpenAI-compatible endpoint.
type ProviderConfig struct {
	Name    string
	BaseURL string
	Model   string
	APIKey  string
}

// OpenAIProvider talks to any OpenAI-compatible chat completions API
// (OpenAI, Gemini's compatibility endpoint, OpenRouter, local gateways).
type OpenAIProvider struct {
	name        string
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

// NewOpenAIProvider builds a provider. The SDK's own retries are disabled;
// failover is handled by the Chain.
func NewOpenAIProvider(cfg ProviderConfig, timeout time.Duration, temperature float64) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Model
	}
	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: temperature,
		timeout:     timeout,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

// Attempt sends one request. Errors are always *ProviderError.
func (p *OpenAIProvider) Attempt(ctx context.Context, prompt Prompt) (models.Recommendation, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	param := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		Temperature: openai.Float(p.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: lo.ToPtr(shared.NewResponseFormatJSONObjectParam()),
		},
	}

	completion, err := p.client.Chat.Completions.New(ctx, param)
	if err != nil {
		return models.Recommendation{}, p.classify(err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return models.Recommendation{}, &ProviderError{
			Provider: p.name,
			Class:    Retryable,
			Err:      errors.New("empty completion"),
		}
	}
	return ParseRecommendation(completion.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) classify(err error) *ProviderError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider: p.name,
			Class:    ClassifyStatus(apiErr.StatusCode),
			Status:   apiErr.StatusCode,
			Err:      err,
		}
	}
	// Timeouts, refused connections and other failures below HTTP.
	return &ProviderError{Provider: p.name, Class: Transport, Err: err}
}

// ClassifyStatus maps an HTTP status to an error class. Rate limits,
// server errors and auth failures move on to the next candidate; other
// client errors mean the request itself is wrong.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusRequestTimeout,
		status >= 500:
		return Retryable
	case status >= 400:
		return NonRetryable
	default:
		return Retryable
	}
}

var _ Provider = (*OpenAIProvider)(nil)

func (p *OpenAIProvider) String() string {
	return fmt.Sprintf("%s(%s)", p.name, p.model)
}
