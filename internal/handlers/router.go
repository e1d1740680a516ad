package handlers

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kospichat "github.com/kdb-labs/kospi-chat"
)

// NewRouter builds the HTTP handler of the dashboard server: the pages and their event streams served
// by m, the provider proxies documented under /api, and the embedded static files.
func NewRouter(m Main, quoter IndexQuoter, searcher NewsSearcher, logger *slog.Logger) (http.Handler, error) {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("KOSPI Chat API", "1.0.0")
	cfg.DocsPath = "/api/docs"
	cfg.OpenAPIPath = "/api/openapi"
	// Response bodies are sent as the browser expects them, without $schema links
	cfg.CreateHooks = nil
	api := humachi.New(router, cfg)

	RegisterProxy(api, quoter, searcher, logger)

	staticFS, err := fs.Sub(kospichat.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static files: %w", err)
	}
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	router.Get("/", m.HandleHome)
	router.Get("/sse", m.HandleSSE)
	router.Post("/chat", m.HandleChat)
	router.Post("/securities/select", m.HandleSelectSecurity)
	router.Post("/plans", m.HandlePlans)

	return router, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("module", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("remote", r.RemoteAddr),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
