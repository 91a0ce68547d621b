// Package marketdata fetches OHLC bars from the Yahoo Finance chart API.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/bytedance/sonic"

	"github.com/rewired-gh/marketsentry/internal/models"
)

// ErrNoData is returned when the source has no usable bars for a symbol.
var ErrNoData = errors.New("no market data")

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client provides access to the Yahoo v8 chart API
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a new market data client
func NewClient(baseURL string, timeout time.Duration, maxRetries int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quote `json:"quote"`
	} `json:"indicators"`
}

// Yahoo sends null for bars without trades.
type quote struct {
	Open  []*float64 `json:"open"`
	High  []*float64 `json:"high"`
	Low   []*float64 `json:"low"`
	Close []*float64 `json:"close"`
}

// FetchBars retrieves bars for symbol over period (e.g. "5d") at interval
// (e.g. "15m"). Bars are ascending by time with unique timestamps.
func (c *Client) FetchBars(ctx context.Context, symbol, period, interval string) ([]models.Bar, error) {
	u, err := url.Parse(c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("range", period)
	q.Set("interval", interval)
	u.RawQuery = q.Encode()

	body, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", symbol, err)
	}

	var resp chartResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode chart for %s: %w", symbol, err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("%w: %s: %s %s", ErrNoData, symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	bars := toBars(resp.Chart.Result[0])
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return bars, nil
}

func toBars(r chartResult) []models.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]

	byTime := make(map[int64]models.Bar, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		o, h, l, cl := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		if o == nil || h == nil || l == nil || cl == nil {
			continue
		}
		bar := models.Bar{
			Time:  time.Unix(ts, 0).UTC(),
			Open:  *o,
			High:  *h,
			Low:   *l,
			Close: *cl,
		}
		if bar.Validate() != nil {
			continue
		}
		// Later rows replace earlier ones with the same timestamp.
		byTime[ts] = bar
	}

	bars := make([]models.Bar, 0, len(byTime))
	for _, b := range byTime {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars
}

func at(s []*float64, i int) *float64 {
	if i >= len(s) {
		return nil
	}
	return s[i]
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		// The chart endpoint rejects requests without a browser-like agent.
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; marketsentry/1.0)")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: symbol not found", ErrNoData)
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("request rejected: %d", resp.StatusCode)
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
