package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// DefaultSessionID is sent to the index provider when neither the caller nor the configuration
// supplies a session identifier.
const DefaultSessionID = "test"

const (
	goodAPIEndpoint = "https://api.goodapi.co.kr"
	goodAPIOKCode   = "0000"
)

// GoodAPI is a client for the goodapi stock index quote service. It holds the session identifier read
// from server-side configuration, so callers never have to see it.
type GoodAPI struct {
	baseURL   string
	sessionID string

	client *http.Client

	logger *slog.Logger
}

// NewGoodAPI creates a GoodAPI client. An empty baseURL selects the public endpoint, and an empty
// sessionID falls back to DefaultSessionID.
func NewGoodAPI(baseURL, sessionID string, client *http.Client, logger *slog.Logger) GoodAPI {
	if baseURL == "" {
		baseURL = goodAPIEndpoint
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	return GoodAPI{
		baseURL:   baseURL,
		sessionID: sessionID,
		client:    client,
		logger:    logger.With(slog.String("module", "goodapi")),
	}
}

// KOSPIIndex fetches the KOSPI index quote and returns the provider payload as is. A non-empty
// sessionID overrides the configured one for this call. Non-success statuses and payloads carrying a
// result code other than "0000" are reported as ErrUpstream.
func (g GoodAPI) KOSPIIndex(ctx context.Context, sessionID string) (map[string]any, error) {
	if sessionID == "" {
		sessionID = g.sessionID
	}

	params := url.Values{}
	params.Set("sessionID", sessionID)
	u := fmt.Sprintf("%s/api/StockIndex/KOSPI?%s", g.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error sending request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamStatusError(resp)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: error decoding response: %v", ErrUpstream, err)
	}

	if code, _ := payload["R_CODE"].(string); code != goodAPIOKCode {
		msg, _ := payload["R_MSG"].(string)
		if msg == "" {
			msg = "KOSPI API 오류"
		}
		g.logger.Debug("Index provider rejected request",
			slog.String("code", code),
			slog.String("message", msg))
		return nil, fmt.Errorf("%w: %s (%s)", ErrUpstream, msg, code)
	}

	return payload, nil
}
