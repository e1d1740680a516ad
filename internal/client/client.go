// Package client fetches the dashboard data from the proxy handlers, the market backend and the chat
// backend, and shapes the payloads into view models.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kdb-labs/kospi-chat/internal/models"
)

// ErrStatus is wrapped by errors caused by a non-success HTTP status.
var ErrStatus = errors.New("unexpected status")

// MaxNewsItems is the number of headlines kept per company.
const MaxNewsItems = 3

const koreanDateLayout = "2006. 1. 2."

var boldTags = regexp.MustCompile(`</?b>`)

// Config holds the base URLs of the services the client talks to.
type Config struct {
	// ProxyURL is where the index and news proxy handlers are served.
	ProxyURL string
	// MarketURL is the market backend serving top movers and the security list.
	MarketURL string
	// ChatURL is the question-answering backend.
	ChatURL string
}

// Client is the set of remote data fetchers used by the dashboard views.
type Client struct {
	cfg Config
	loc *time.Location

	http *http.Client

	logger *slog.Logger
}

type indexPayload struct {
	Value  string `json:"지수정보"`
	Change string `json:"지수등락율"`
}

type newsPayload struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		PubDate string `json:"pubDate"`
	} `json:"items"`
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

// New creates a Client. News publish dates are formatted in loc, nil meaning time.Local.
func New(cfg Config, httpClient *http.Client, loc *time.Location, logger *slog.Logger) Client {
	if loc == nil {
		loc = time.Local
	}
	return Client{
		cfg:    cfg,
		loc:    loc,
		http:   httpClient,
		logger: logger.With(slog.String("module", "client")),
	}
}

// Index fetches the index quote through the index proxy. Any non-success status is an error.
func (c Client) Index(ctx context.Context) (models.IndexSnapshot, error) {
	var p indexPayload
	if err := c.getJSON(ctx, c.cfg.ProxyURL+"/api/kospi-index", &p); err != nil {
		return models.IndexSnapshot{}, fmt.Errorf("failed to fetch index: %w", err)
	}
	return models.NewIndexSnapshot(p.Value, p.Change), nil
}

// News fetches the latest headlines of a company through the news proxy. Titles are decoded and
// stripped of bold markup, the list is cut to MaxNewsItems in provider order, and publish dates are
// formatted the Korean way.
func (c Client) News(ctx context.Context, company string) ([]models.NewsItem, error) {
	u := c.cfg.ProxyURL + "/api/news?query=" + url.QueryEscape(company)

	var p newsPayload
	if err := c.getJSON(ctx, u, &p); err != nil {
		return nil, fmt.Errorf("failed to fetch news for %s: %w", company, err)
	}

	raw := p.Items
	if len(raw) > MaxNewsItems {
		raw = raw[:MaxNewsItems]
	}

	items := make([]models.NewsItem, len(raw))
	for i, item := range raw {
		items[i] = models.NewsItem{
			Title:   DecodeTitle(item.Title),
			Link:    item.Link,
			PubDate: FormatPubDate(item.PubDate, c.loc),
		}
	}
	return items, nil
}

// TopMovers fetches the top-movers ranking from the market backend.
func (c Client) TopMovers(ctx context.Context) ([]models.RankedStock, error) {
	var stocks []models.RankedStock
	if err := c.getJSON(ctx, c.cfg.MarketURL+"/api/top-stocks", &stocks); err != nil {
		return nil, fmt.Errorf("failed to fetch top stocks: %w", err)
	}
	c.logger.Debug("Fetched top stocks", slog.Int("count", len(stocks)))
	return stocks, nil
}

// Listings fetches the reference security list from the market backend.
func (c Client) Listings(ctx context.Context) ([]models.SecurityListing, error) {
	var listings []models.SecurityListing
	if err := c.getJSON(ctx, c.cfg.MarketURL+"/api/kospi-stocks", &listings); err != nil {
		return nil, fmt.Errorf("failed to fetch kospi stocks: %w", err)
	}
	return listings, nil
}

// Ask posts the question to the chat backend and returns its answer. The call is never retried since
// every request is a new conversational turn on the backend.
func (c Client) Ask(ctx context.Context, question string) (string, error) {
	body, err := json.Marshal(chatRequest{Question: question})
	if err != nil {
		return "", fmt.Errorf("failed to marshal question: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ChatURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var res chatResponse
	if err := c.do(req, &res); err != nil {
		return "", fmt.Errorf("failed to ask chat backend: %w", err)
	}
	return res.Answer, nil
}

func (c Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, v)
}

func (c Client) do(req *http.Request, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// DecodeTitle strips bold markup from a headline and resolves its HTML entities. Bold tags are
// stripped both before and after decoding, so entity-encoded tags are removed too. Non-breaking
// spaces become plain spaces.
func DecodeTitle(title string) string {
	title = boldTags.ReplaceAllString(title, "")
	title = html.UnescapeString(title)
	title = boldTags.ReplaceAllString(title, "")
	return strings.ReplaceAll(title, "\u00a0", " ")
}

// FormatPubDate formats an RFC 1123 publish date as a Korean calendar date in loc, e.g. "2024. 8. 5.".
// Dates that cannot be parsed are returned unchanged.
func FormatPubDate(pubDate string, loc *time.Location) string {
	t, err := time.Parse(time.RFC1123Z, pubDate)
	if err != nil {
		t, err = time.Parse(time.RFC1123, pubDate)
		if err != nil {
			return pubDate
		}
	}
	return t.In(loc).Format(koreanDateLayout)
}
