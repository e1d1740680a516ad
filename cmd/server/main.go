package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/kdb-labs/kospi-chat/internal/client"
	"github.com/kdb-labs/kospi-chat/internal/dashboard"
	"github.com/kdb-labs/kospi-chat/internal/handlers"
	"github.com/kdb-labs/kospi-chat/internal/logging"
	"github.com/kdb-labs/kospi-chat/internal/services"
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	appDir := filepath.Join(cfgDir, "kospichat")

	cfgFilePath := flag.String("config", filepath.Join(appDir, "config.yaml"), "path to the config file")
	flag.Parse()

	cfg, err := loadConfig(*cfgFilePath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatal(err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal(fmt.Errorf("error loading timezone %s: %w", cfg.Timezone, err))
	}

	if err := os.MkdirAll(appDir, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}
	boltDB, err := services.NewBoltDB(filepath.Join(appDir, "store.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer boltDB.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	goodAPI := services.NewGoodAPI(cfg.GoodAPI.BaseURL, cfg.GoodAPI.SessionID, httpClient, logger)
	naver := services.NewNaver(cfg.Naver.BaseURL, cfg.Naver.ClientID, cfg.Naver.ClientSecret, httpClient, logger)
	if cfg.Naver.ClientID == "" || cfg.Naver.ClientSecret == "" {
		logger.Warn("Naver credentials are not set, news search will fail")
	}

	fetcher := client.New(client.Config{
		ProxyURL:  cfg.ProxyURL,
		MarketURL: cfg.MarketURL,
		ChatURL:   cfg.ChatURL,
	}, httpClient, loc, logger)

	registry := dashboard.NewRegistry(fetcher, dashboard.Options{
		PollInterval: cfg.PollInterval,
		Companies:    cfg.Companies,
		Listings:     boltDB,
	}, logger)

	m, err := handlers.NewMain(registry, logger)
	if err != nil {
		log.Fatal(err)
	}

	router, err := handlers.NewRouter(m, goodAPI, naver, logger)
	if err != nil {
		log.Fatal(err)
	}

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	janitorDone := make(chan struct{})
	go func() {
		registry.Run(janitorCtx, dashboard.DefaultMountGrace)
		close(janitorDone)
	}()

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			slog.String("addr", srv.Addr),
			slog.String("docs", "http://localhost:"+cfg.Port+"/api/docs"))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", slog.String("err", err.Error()))
		}

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}

	janitorCancel()
	<-janitorDone
}
