// Package answer serves the question-answering API the dashboard chat relays to.
package answer

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Answerer answers a single question. Every call is independent, no conversation history is kept.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// RunningMessage is returned by the root endpoint.
const RunningMessage = "KOSPI Chat API가 실행 중입니다."

const (
	errLoggerKey         = "err"
	emptyQuestionMessage = "질문을 입력해 주세요."
)

type statusOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

type chatInput struct {
	Body struct {
		Question string `json:"question" doc:"Question about the Korean stock market"`
	}
}

type chatBody struct {
	Answer string `json:"answer,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type chatOutput struct {
	Status int
	Body   chatBody
}

// NewServer builds the HTTP handler of the question-answering API. Any origin may call it.
func NewServer(answerer Answerer, logger *slog.Logger) http.Handler {
	logger = logger.With(slog.String("module", "answer"))

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware)

	cfg := huma.DefaultConfig("KOSPI Chat Answer API", "1.0.0")
	cfg.CreateHooks = nil
	api := humachi.New(router, cfg)

	huma.Register(api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Report that the API is running",
		Tags:        []string{"Status"},
	}, func(context.Context, *struct{}) (*statusOutput, error) {
		out := &statusOutput{}
		out.Body.Message = RunningMessage
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Answer a question",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, input *chatInput) (*chatOutput, error) {
		question := input.Body.Question
		if strings.TrimSpace(question) == "" {
			return &chatOutput{Status: http.StatusBadRequest, Body: chatBody{Detail: emptyQuestionMessage}}, nil
		}

		answer, err := answerer.Answer(ctx, question)
		if err != nil {
			logger.Error("Failed to answer question",
				slog.String("question", question),
				slog.String(errLoggerKey, err.Error()))
			return &chatOutput{Status: http.StatusInternalServerError, Body: chatBody{Detail: err.Error()}}, nil
		}

		logger.Debug("Question answered", slog.Int("answerLength", len(answer)))
		return &chatOutput{Status: http.StatusOK, Body: chatBody{Answer: answer}}, nil
	})

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
