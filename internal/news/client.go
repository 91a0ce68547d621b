// Package news fetches headlines from the Google News RSS search feed.
package news

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/rewired-gh/marketsentry/internal/logger"
	"github.com/rewired-gh/marketsentry/internal/models"
)

const (
	DefaultBaseURL = "https://news.google.com/rss/search"
	DefaultLimit   = 10
)

// DefaultOilQuery matches direct oil news plus macro events that mention oil or energy.
const DefaultOilQuery = `("Crude Oil" OR "WTI" OR OPEC) OR (("War" OR "Attack" OR "Iran" OR "Russia" OR "Ukraine" OR "Explosion" OR "Refinery" OR "Sanctions" OR "Hurricane") AND ("Oil" OR "Energy"))`

// Client reads a search feed and normalizes its items.
type Client struct {
	baseURL string
	limit   int
	parser  *gofeed.Parser
}

// NewClient creates a news client. limit <= 0 uses DefaultLimit.
func NewClient(baseURL string, timeout time.Duration, limit int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = "marketsentry/1.0"
	return &Client{baseURL: baseURL, limit: limit, parser: parser}
}

// BuildURL returns the feed URL for query.
func (c *Client) BuildURL(query string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", "en-US")
	v.Set("gl", "US")
	v.Set("ceid", "US:en")
	return c.baseURL + "?" + v.Encode()
}

// Fetch returns up to the client limit of items, most recent first with
// undated items last. Failures are logged and yield an empty list: a tick
// can proceed without headlines.
func (c *Client) Fetch(ctx context.Context, query string) []models.NewsItem {
	feed, err := c.parser.ParseURLWithContext(c.BuildURL(query), ctx)
	if err != nil {
		logger.Warn("News fetch failed for %q: %v", query, err)
		return nil
	}

	items := lo.FilterMap(feed.Items, func(it *gofeed.Item, _ int) (models.NewsItem, bool) {
		return toNewsItem(it)
	})
	items = lo.UniqBy(items, func(n models.NewsItem) string { return n.ID })

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Published, items[j].Published
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.After(b)
		}
	})

	if len(items) > c.limit {
		items = items[:c.limit]
	}
	return items
}

func toNewsItem(it *gofeed.Item) (models.NewsItem, bool) {
	if it == nil {
		return models.NewsItem{}, false
	}
	title := CleanTitle(it.Title)
	if title == "" {
		return models.NewsItem{}, false
	}

	n := models.NewsItem{Title: title, Link: strings.TrimSpace(it.Link)}
	switch {
	case n.Link != "":
		n.ID = n.Link
	case strings.TrimSpace(it.GUID) != "":
		n.ID = strings.TrimSpace(it.GUID)
	default:
		n.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(title)).String()
	}

	if it.PublishedParsed != nil {
		n.Published = it.PublishedParsed.UTC()
	} else if it.UpdatedParsed != nil {
		n.Published = it.UpdatedParsed.UTC()
	}
	return n, true
}

// CleanTitle drops the " - Publisher" suffix the aggregator appends.
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if i := strings.Index(title, " - "); i > 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}
