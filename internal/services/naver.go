package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

const naverEndpoint = "https://openapi.naver.com"

// Naver is a client for the Naver news search API. The client credentials are held server-side and
// attached as request headers, they never reach the browser.
type Naver struct {
	baseURL      string
	clientID     string
	clientSecret string

	client *http.Client

	logger *slog.Logger
}

type naverSearchResponse struct {
	Items []map[string]any `json:"items"`
}

// NewNaver creates a Naver client. An empty baseURL selects the public endpoint.
func NewNaver(baseURL, clientID, clientSecret string, client *http.Client, logger *slog.Logger) Naver {
	if baseURL == "" {
		baseURL = naverEndpoint
	}
	return Naver{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       client,
		logger:       logger.With(slog.String("module", "naver")),
	}
}

// SearchNews returns the most recent news items matching query, sorted by date, at most display of
// them. The items are returned as the provider sent them. A payload without items yields an empty,
// non-nil slice.
func (n Naver) SearchNews(ctx context.Context, query string, display int) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(display))
	params.Set("sort", "date")
	u := fmt.Sprintf("%s/v1/search/news.json?%s", n.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", n.clientID)
	req.Header.Set("X-Naver-Client-Secret", n.clientSecret)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error sending request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamStatusError(resp)
	}

	var res naverSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: error decoding response: %v", ErrUpstream, err)
	}

	n.logger.Debug("News search done",
		slog.String("query", query),
		slog.Int("count", len(res.Items)))

	if res.Items == nil {
		return []map[string]any{}, nil
	}
	return res.Items, nil
}
