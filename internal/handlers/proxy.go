package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// IndexQuoter fetches the KOSPI index quote from the index provider. An empty sessionID means the
// configured one.
type IndexQuoter interface {
	KOSPIIndex(ctx context.Context, sessionID string) (map[string]any, error)
}

// NewsSearcher searches the news provider for the most recent items matching a query.
type NewsSearcher interface {
	SearchNews(ctx context.Context, query string, display int) ([]map[string]any, error)
}

// NewsDisplay is the number of news items requested from the provider per query.
const NewsDisplay = 3

const (
	indexErrorMessage      = "서버 오류"
	newsQueryErrorMessage  = "쿼리 매개변수가 필요합니다"
	newsUpstreamErrMessage = "뉴스를 가져오는 중 오류가 발생했습니다."
)

type indexInput struct {
	SessionID string `query:"sessionID" doc:"Provider session identifier, the configured one when empty"`
}

type indexOutput struct {
	Status int
	Body   map[string]any
}

type newsInput struct {
	Query string `query:"query" doc:"Company name to search news for"`
}

type newsBody struct {
	Error string           `json:"error,omitempty"`
	Items []map[string]any `json:"items,omitzero"`
}

type newsOutput struct {
	Status int
	Body   newsBody
}

// RegisterProxy registers the index quote and news search proxies. Both keep the provider credentials
// on the server and answer with fixed error payloads when the provider fails.
func RegisterProxy(api huma.API, quoter IndexQuoter, searcher NewsSearcher, logger *slog.Logger) {
	logger = logger.With(slog.String("module", "proxy"))

	huma.Register(api, huma.Operation{
		OperationID: "get-kospi-index",
		Method:      http.MethodGet,
		Path:        "/api/kospi-index",
		Summary:     "Get the KOSPI index quote",
		Tags:        []string{"Market"},
	}, func(ctx context.Context, input *indexInput) (*indexOutput, error) {
		payload, err := quoter.KOSPIIndex(ctx, input.SessionID)
		if err != nil {
			logger.Error("Failed to fetch index quote", slog.String(errLoggerKey, err.Error()))
			return &indexOutput{
				Status: http.StatusInternalServerError,
				Body:   map[string]any{"error": indexErrorMessage},
			}, nil
		}
		return &indexOutput{Status: http.StatusOK, Body: payload}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-news",
		Method:      http.MethodGet,
		Path:        "/api/news",
		Summary:     "Search the latest news of a company",
		Tags:        []string{"News"},
	}, func(ctx context.Context, input *newsInput) (*newsOutput, error) {
		if strings.TrimSpace(input.Query) == "" {
			return &newsOutput{
				Status: http.StatusBadRequest,
				Body:   newsBody{Error: newsQueryErrorMessage},
			}, nil
		}

		items, err := searcher.SearchNews(ctx, input.Query, NewsDisplay)
		if err != nil {
			logger.Error("Failed to search news",
				slog.String("query", input.Query),
				slog.String(errLoggerKey, err.Error()))
			return &newsOutput{
				Status: http.StatusInternalServerError,
				Body:   newsBody{Error: newsUpstreamErrMessage, Items: []map[string]any{}},
			}, nil
		}
		if items == nil {
			items = []map[string]any{}
		}
		return &newsOutput{Status: http.StatusOK, Body: newsBody{Items: items}}, nil
	})
}
