package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"KOSPI_API_SESSION_ID", "NAVER_CLIENT_ID", "NAVER_CLIENT_SECRET", "KOSPICHAT_PORT",
		"KOSPICHAT_PROXY_URL", "KOSPICHAT_MARKET_URL", "KOSPICHAT_CHAT_URL", "KOSPICHAT_LOG_LEVEL",
		"KOSPICHAT_LOG_FILE"} {
		t.Setenv(key, "")
	}
	// godotenv reads .env from the working directory
	t.Chdir(t.TempDir())
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.ProxyURL != "http://localhost:3000" {
		t.Errorf("ProxyURL = %q, want http://localhost:3000", cfg.ProxyURL)
	}
	if cfg.Timezone != "Asia/Seoul" {
		t.Errorf("Timezone = %q, want Asia/Seoul", cfg.Timezone)
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)

	content := `
port: "4000"
pollInterval: 10s
companies: ["삼성전자", "카카오"]
marketURL: http://market:8080/
goodapi:
  sessionID: from-file
naver:
  clientID: id-from-file
  clientSecret: secret-from-file
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("KOSPI_API_SESSION_ID", "from-env")
	t.Setenv("NAVER_CLIENT_SECRET", "secret-from-env")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Port != "4000" || cfg.ProxyURL != "http://localhost:4000" {
		t.Errorf("Port = %q, ProxyURL = %q", cfg.Port, cfg.ProxyURL)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.PollInterval)
	}
	if len(cfg.Companies) != 2 || cfg.Companies[1] != "카카오" {
		t.Errorf("Companies = %v", cfg.Companies)
	}
	if cfg.MarketURL != "http://market:8080" {
		t.Errorf("MarketURL = %q, want trailing slash trimmed", cfg.MarketURL)
	}
	if cfg.GoodAPI.SessionID != "from-env" {
		t.Errorf("GoodAPI.SessionID = %q, want from-env", cfg.GoodAPI.SessionID)
	}
	if cfg.Naver.ClientID != "id-from-file" || cfg.Naver.ClientSecret != "secret-from-env" {
		t.Errorf("Naver = %+v", cfg.Naver)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
	}{
		{name: "Bad yaml", content: "port: [3000"},
		{name: "Non-positive poll interval", content: "pollInterval: 0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := loadConfig(path); err == nil {
				t.Error("loadConfig() error = nil, want error")
			}
		})
	}
}
