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

	"github.com/joho/godotenv"
	"github.com/kdb-labs/kospi-chat/internal/answer"
	"github.com/kdb-labs/kospi-chat/internal/logging"
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}

	cfgFilePath := flag.String("config", filepath.Join(cfgDir, "kospichat", "chatbackend.yaml"),
		"path to the config file")
	flag.Parse()

	// The .env file is optional
	_ = godotenv.Load()

	cfg, err := loadConfig(*cfgFilePath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatal(err)
	}

	answerer, err := cfg.LLM.answerer(cfg.PromptTemplate, logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating answerer: %w", err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           answer.NewServer(answerer, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Chat backend starting", slog.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", slog.String("err", err.Error()))
			os.Exit(1)
		}

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}
