package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/marketsentry/internal/news"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
sentry:
  poll_interval: 2m
  asset_pause: 3s

assets:
  - symbol: "CL=F"
    name: "WTI Crude"
    news_query: "crude oil"
  - symbol: "BZ=F"
    risk_mode: swing
    shock_threshold: 0.8

monitor:
  quality_gate: true

advisor:
  providers:
    - name: primary
      base_url: "https://api.example.com/v1"
      model: "gpt-test"
      api_key: "sk-1"
    - name: backup
      model: "backup-model"
      api_key_env: "MARKET_SENTRY_TEST_MISSING_KEY"

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

logging:
  level: "info"
  format: "json"
`)

	// Test Load
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify values
	if cfg.Sentry.PollInterval != 2*time.Minute {
		t.Errorf("Unexpected poll interval: %v", cfg.Sentry.PollInterval)
	}
	if cfg.Sentry.ReportInterval != 30*time.Minute {
		t.Errorf("Unexpected report interval default: %v", cfg.Sentry.ReportInterval)
	}
	if cfg.Monitor.FreshnessWindow != 15*time.Minute || !cfg.Monitor.QualityGate {
		t.Errorf("Unexpected monitor config: %+v", cfg.Monitor)
	}
	if len(cfg.Indicators.EMAPeriods) != 2 || cfg.Indicators.EMAPeriods[0] != 21 {
		t.Errorf("Unexpected EMA periods: %v", cfg.Indicators.EMAPeriods)
	}

	if len(cfg.Assets) != 2 {
		t.Fatalf("Expected 2 assets, got %d", len(cfg.Assets))
	}
	wti, brent := cfg.Assets[0], cfg.Assets[1]
	if wti.Period != "5d" || wti.Interval != "15m" || wti.ShockThreshold != 0.5 || wti.ChartBars != 50 {
		t.Errorf("Asset defaults not applied: %+v", wti)
	}
	if wti.RiskMode != "short_horizon" || wti.PromptTemplate != "short_horizon" {
		t.Errorf("Unexpected WTI modes: %+v", wti)
	}
	if wti.NewsQuery != "crude oil" {
		t.Errorf("Explicit news query overwritten: %q", wti.NewsQuery)
	}
	if brent.NewsQuery != news.DefaultOilQuery {
		t.Errorf("Default news query not applied: %q", brent.NewsQuery)
	}
	if brent.Name != "BZ=F" || brent.ShockThreshold != 0.8 || brent.PromptTemplate != "swing" {
		t.Errorf("Unexpected Brent config: %+v", brent)
	}

	usable, skipped := cfg.UsableProviders()
	if len(usable) != 1 || usable[0].Name != "primary" {
		t.Errorf("Unexpected usable providers: %+v", usable)
	}
	if len(skipped) != 1 || skipped[0] != "backup" {
		t.Errorf("Unexpected skipped providers: %v", skipped)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
assets:
  - symbol: "CL=F"
`)
	t.Setenv("TELEGRAM_TOKEN", "legacy-token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("MARKET_SENTRY_SENTRY_POLL_INTERVAL", "90s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.BotToken != "legacy-token" || cfg.Telegram.ChatID != "42" {
		t.Errorf("Legacy Telegram env not applied: %+v", cfg.Telegram)
	}
	if cfg.Telegram.Timeout != 75*time.Second {
		t.Errorf("Unexpected telegram timeout default: %v", cfg.Telegram.Timeout)
	}
	if cfg.Sentry.PollInterval != 90*time.Second {
		t.Errorf("Env poll interval not applied: %v", cfg.Sentry.PollInterval)
	}
	if len(cfg.Advisor.Providers) != 1 || cfg.Advisor.Providers[0].Name != "gemini" || cfg.Advisor.Providers[0].APIKey != "gemini-key" {
		t.Errorf("Default provider not resolved: %+v", cfg.Advisor.Providers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func validConfig() *Config {
	return &Config{
		Sentry: SentryConfig{
			PollInterval:   2 * time.Minute,
			ReportInterval: 30 * time.Minute,
			AssetPause:     5 * time.Second,
			TickTimeout:    time.Minute,
		},
		Assets: []AssetConfig{{
			Symbol: "CL=F", Name: "WTI", Period: "5d", Interval: "15m",
			ShockThreshold: 0.5, RiskMode: "short_horizon", PromptTemplate: "short_horizon", ChartBars: 50,
		}},
		Monitor: MonitorConfig{FreshnessWindow: 15 * time.Minute, Retention: time.Hour},
		Indicators: IndicatorsConfig{
			RSIWindow: 14, ATRWindow: 14, MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
			EMAPeriods: []int{21, 50}, SRLookback: 20,
		},
		Advisor: AdvisorConfig{
			Timeout:     time.Minute,
			Temperature: 0.2,
			Providers:   []ProviderConfig{{Name: "primary", Model: "m", APIKey: "k"}},
		},
		MarketData: MarketDataConfig{BaseURL: "https://query1.finance.yahoo.com", Timeout: 20 * time.Second, MaxRetries: 3},
		News:       NewsConfig{BaseURL: "https://news.google.com/rss/search", Timeout: 15 * time.Second, Limit: 10, Headlines: 10},
		Telegram:   TelegramConfig{Enabled: true, BotToken: "t", ChatID: "1", MaxRetries: 3, RetryDelayBase: time.Second, Timeout: 75 * time.Second, MaxMessageLength: 4000},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing telegram token when enabled", func(c *Config) { c.Telegram.BotToken = "" }, "telegram.bot_token"},
		{"telegram disabled needs no token", func(c *Config) { c.Telegram.Enabled = false; c.Telegram.BotToken = "" }, ""},
		{"no assets", func(c *Config) { c.Assets = nil }, "assets"},
		{"asset without symbol", func(c *Config) { c.Assets[0].Symbol = "" }, "assets[0].symbol is required"},
		{"bad risk mode", func(c *Config) { c.Assets[0].RiskMode = "yolo" }, "assets[0].risk_mode must be one of"},
		{"duplicate symbol", func(c *Config) { c.Assets = append(c.Assets, c.Assets[0]) }, "duplicate symbol"},
		{"half custom multipliers", func(c *Config) { c.Assets[0].StopMultiplier = 1 }, "set together"},
		{"poll interval too short", func(c *Config) { c.Sentry.PollInterval = time.Second }, "sentry.poll_interval"},
		{"macd slow not above fast", func(c *Config) { c.Indicators.MACDSlow = 12 }, "indicators.macd_slow"},
		{"single ema period", func(c *Config) { c.Indicators.EMAPeriods = []int{21} }, "indicators.ema_periods"},
		{"first provider without key", func(c *Config) { c.Advisor.Providers[0].APIKey = "" }, "advisor.providers[0] (primary): api_key is required"},
		{"second provider without key is fine", func(c *Config) {
			c.Advisor.Providers = append(c.Advisor.Providers, ProviderConfig{Name: "b", Model: "m2"})
		}, ""},
		{"provider without model", func(c *Config) { c.Advisor.Providers[0].Model = "" }, "advisor.providers[0].model"},
		{"telegram timeout within long poll", func(c *Config) { c.Telegram.Timeout = 30 * time.Second }, "telegram.timeout must be greater than 60s"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"metrics enabled without listen", func(c *Config) { c.Metrics.Enabled = true }, "metrics.listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
