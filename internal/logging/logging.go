// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds a text logger writing to stdout and, when file is not empty, to a size-rotated log
// file. The logger is installed as the slog default and returned.
func Setup(level, file string) (*slog.Logger, error) {
	var w io.Writer = os.Stdout
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    25,
			MaxBackups: 10,
			MaxAge:     14,
			Compress:   true,
		})
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(logger)
	return logger, nil
}

// ParseLevel maps a level name to its slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
