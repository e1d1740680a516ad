package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type config struct {
	Port         string        `yaml:"port"`
	Timezone     string        `yaml:"timezone"`
	PollInterval time.Duration `yaml:"pollInterval"`
	Companies    []string      `yaml:"companies"`

	// ProxyURL is where the dashboard reaches its own proxy handlers, the local server by default.
	ProxyURL  string `yaml:"proxyURL"`
	MarketURL string `yaml:"marketURL"`
	ChatURL   string `yaml:"chatURL"`

	HTTPTimeout time.Duration `yaml:"httpTimeout"`

	GoodAPI goodAPIConfig `yaml:"goodapi"`
	Naver   naverConfig   `yaml:"naver"`
	Logging loggingConfig `yaml:"logging"`
}

type goodAPIConfig struct {
	BaseURL   string `yaml:"baseURL"`
	SessionID string `yaml:"sessionID"`
}

type naverConfig struct {
	BaseURL      string `yaml:"baseURL"`
	ClientID     string `yaml:"clientID"`
	ClientSecret string `yaml:"clientSecret"`
}

type loggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func defaultConfig() config {
	return config{
		Port:         "3000",
		Timezone:     "Asia/Seoul",
		PollInterval: 30 * time.Second,
		MarketURL:    "http://localhost:8080",
		ChatURL:      "http://localhost:8000",
		HTTPTimeout:  30 * time.Second,
		Logging:      loggingConfig{Level: "info"},
	}
}

// loadConfig reads the yaml file at path over the defaults. A missing file leaves the defaults in
// place. Variables from a .env file in the working directory, then the process environment, override
// what the file says.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config{}, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	// The .env file is optional
	_ = godotenv.Load()
	applyEnvOverrides(&cfg)

	if cfg.ProxyURL == "" {
		cfg.ProxyURL = "http://localhost:" + cfg.Port
	}
	cfg.ProxyURL = strings.TrimSuffix(cfg.ProxyURL, "/")
	cfg.MarketURL = strings.TrimSuffix(cfg.MarketURL, "/")
	cfg.ChatURL = strings.TrimSuffix(cfg.ChatURL, "/")

	if cfg.PollInterval <= 0 {
		return config{}, fmt.Errorf("pollInterval must be positive, got %s", cfg.PollInterval)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *config) {
	if v := os.Getenv("KOSPI_API_SESSION_ID"); v != "" {
		cfg.GoodAPI.SessionID = v
	}
	if v := os.Getenv("NAVER_CLIENT_ID"); v != "" {
		cfg.Naver.ClientID = v
	}
	if v := os.Getenv("NAVER_CLIENT_SECRET"); v != "" {
		cfg.Naver.ClientSecret = v
	}

	if v := os.Getenv("KOSPICHAT_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("KOSPICHAT_PROXY_URL"); v != "" {
		cfg.ProxyURL = v
	}
	if v := os.Getenv("KOSPICHAT_MARKET_URL"); v != "" {
		cfg.MarketURL = v
	}
	if v := os.Getenv("KOSPICHAT_CHAT_URL"); v != "" {
		cfg.ChatURL = v
	}
	if v := os.Getenv("KOSPICHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KOSPICHAT_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
}
