package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/rewired-gh/marketsentry/internal/news"
)

// Config represents the complete application configuration
type Config struct {
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Assets      []AssetConfig     `mapstructure:"assets" validate:"required,min=1,dive"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Indicators  IndicatorsConfig  `mapstructure:"indicators"`
	Advisor     AdvisorConfig     `mapstructure:"advisor"`
	MarketData  MarketDataConfig  `mapstructure:"market_data"`
	News        NewsConfig        `mapstructure:"news"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	MarketHours MarketHoursConfig `mapstructure:"market_hours"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// SentryConfig holds the watch loop timing
type SentryConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"min=10s"`
	ReportInterval time.Duration `mapstructure:"report_interval" validate:"min=1m"`
	AssetPause     time.Duration `mapstructure:"asset_pause" validate:"min=0s"`
	TickTimeout    time.Duration `mapstructure:"tick_timeout" validate:"min=5s"`
}

// AssetConfig describes one watched instrument. Zero fields are filled
// from the default tags after loading.
type AssetConfig struct {
	Symbol           string  `mapstructure:"symbol" validate:"required"`
	Name             string  `mapstructure:"name"`
	NewsQuery        string  `mapstructure:"news_query"`
	Period           string  `mapstructure:"period" default:"5d" validate:"required"`
	Interval         string  `mapstructure:"interval" default:"15m" validate:"required"`
	ShockThreshold   float64 `mapstructure:"shock_threshold" default:"0.5" validate:"gt=0"`
	RiskMode         string  `mapstructure:"risk_mode" default:"short_horizon" validate:"oneof=short_horizon swing"`
	StopMultiplier   float64 `mapstructure:"stop_multiplier" validate:"gte=0"`
	TargetMultiplier float64 `mapstructure:"target_multiplier" validate:"gte=0"`
	PromptTemplate   string  `mapstructure:"prompt_template" validate:"omitempty,oneof=short_horizon swing"`
	ChartBars        int     `mapstructure:"chart_bars" default:"50" validate:"gte=0,lte=500"`
}

// MonitorConfig holds event classification settings shared by all assets
type MonitorConfig struct {
	FreshnessWindow time.Duration `mapstructure:"freshness_window" validate:"min=1m"`
	Retention       time.Duration `mapstructure:"retention" validate:"min=1m"`
	QualityGate     bool          `mapstructure:"quality_gate"`
}

// IndicatorsConfig holds indicator windows
type IndicatorsConfig struct {
	RSIWindow  int   `mapstructure:"rsi_window" validate:"gte=2"`
	ATRWindow  int   `mapstructure:"atr_window" validate:"gte=1"`
	MACDFast   int   `mapstructure:"macd_fast" validate:"gte=1"`
	MACDSlow   int   `mapstructure:"macd_slow" validate:"gtfield=MACDFast"`
	MACDSignal int   `mapstructure:"macd_signal" validate:"gte=1"`
	EMAPeriods []int `mapstructure:"ema_periods" validate:"min=2,dive,gte=2"`
	SRLookback int   `mapstructure:"sr_lookback" validate:"gte=1"`
}

// AdvisorConfig holds the AI provider failover list
type AdvisorConfig struct {
	Timeout     time.Duration    `mapstructure:"timeout" validate:"min=1s"`
	Temperature float64          `mapstructure:"temperature" validate:"gte=0,lte=2"`
	Providers   []ProviderConfig `mapstructure:"providers" validate:"min=1,dive"`
}

// ProviderConfig is one OpenAI-compatible endpoint. The key comes from
// api_key, or from the environment variable named by api_key_env.
type ProviderConfig struct {
	Name      string `mapstructure:"name"`
	BaseURL   string `mapstructure:"base_url" validate:"omitempty,url"`
	Model     string `mapstructure:"model" validate:"required"`
	APIKey    string `mapstructure:"api_key"`
	APIKeyEnv string `mapstructure:"api_key_env"`
}

// MarketDataConfig holds chart API settings
type MarketDataConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"required,url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=1s"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=1,lte=10"`
}

// NewsConfig holds headline feed settings
type NewsConfig struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"min=1s"`
	Limit     int           `mapstructure:"limit" validate:"gte=1,lte=50"`
	Headlines int           `mapstructure:"headlines" validate:"gte=1,lte=50"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken         string        `mapstructure:"bot_token"`
	ChatID           string        `mapstructure:"chat_id"`
	Enabled          bool          `mapstructure:"enabled"`
	MaxRetries       int           `mapstructure:"max_retries" validate:"gte=1,lte=10"`
	RetryDelayBase   time.Duration `mapstructure:"retry_delay_base" validate:"min=0s"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=60s"`
	MaxMessageLength int           `mapstructure:"max_message_length" validate:"gte=100,lte=4096"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen" validate:"required_if=Enabled true"`
}

// MarketHoursConfig holds the trading calendar gate
type MarketHoursConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MIC         string `mapstructure:"mic"`
	SessionOnly bool   `mapstructure:"session_only"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// DefaultGeminiProvider is used when no providers are configured.
var DefaultGeminiProvider = ProviderConfig{
	Name:      "gemini",
	BaseURL:   "https://generativelanguage.googleapis.com/v1beta/openai/",
	Model:     "gemini-2.5-flash",
	APIKeyEnv: "GEMINI_API_KEY",
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. MARKET_SENTRY_SENTRY_POLL_INTERVAL
	v.SetEnvPrefix("MARKET_SENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("telegram.bot_token", "MARKET_SENTRY_TELEGRAM_BOT_TOKEN", "TELEGRAM_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "MARKET_SENTRY_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applyListDefaults(); err != nil {
		return nil, err
	}
	cfg.resolveProviderKeys(os.Getenv)

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Sentry defaults
	v.SetDefault("sentry.poll_interval", "2m")
	v.SetDefault("sentry.report_interval", "30m")
	v.SetDefault("sentry.asset_pause", "5s")
	v.SetDefault("sentry.tick_timeout", "3m")

	// Monitor defaults
	v.SetDefault("monitor.freshness_window", "15m")
	v.SetDefault("monitor.retention", "1h")
	v.SetDefault("monitor.quality_gate", false)

	// Indicator defaults
	v.SetDefault("indicators.rsi_window", 14)
	v.SetDefault("indicators.atr_window", 14)
	v.SetDefault("indicators.macd_fast", 12)
	v.SetDefault("indicators.macd_slow", 26)
	v.SetDefault("indicators.macd_signal", 9)
	v.SetDefault("indicators.ema_periods", []int{21, 50})
	v.SetDefault("indicators.sr_lookback", 20)

	// Advisor defaults
	v.SetDefault("advisor.timeout", "60s")
	v.SetDefault("advisor.temperature", 0.2)

	// Market data defaults
	v.SetDefault("market_data.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market_data.timeout", "20s")
	v.SetDefault("market_data.max_retries", 3)

	// News defaults
	v.SetDefault("news.base_url", "https://news.google.com/rss/search")
	v.SetDefault("news.timeout", "15s")
	v.SetDefault("news.limit", 10)
	v.SetDefault("news.headlines", 10)

	// Telegram defaults
	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.timeout", "75s")
	v.SetDefault("telegram.max_message_length", 4000)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")

	// Market hours defaults
	v.SetDefault("market_hours.enabled", false)
	v.SetDefault("market_hours.mic", "xnys")
	v.SetDefault("market_hours.session_only", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// applyListDefaults fills list entries, which viper defaults cannot reach.
func (c *Config) applyListDefaults() error {
	for i := range c.Assets {
		a := &c.Assets[i]
		if err := defaults.Set(a); err != nil {
			return fmt.Errorf("assets[%d]: failed to apply defaults: %w", i, err)
		}
		if a.Name == "" {
			a.Name = a.Symbol
		}
		if a.PromptTemplate == "" {
			a.PromptTemplate = a.RiskMode
		}
		if a.NewsQuery == "" {
			a.NewsQuery = news.DefaultOilQuery
		}
	}
	if len(c.Advisor.Providers) == 0 {
		c.Advisor.Providers = []ProviderConfig{DefaultGeminiProvider}
	}
	for i := range c.Advisor.Providers {
		p := &c.Advisor.Providers[i]
		if p.Name == "" {
			p.Name = p.Model
		}
	}
	return nil
}

func (c *Config) resolveProviderKeys(getenv func(string) string) {
	for i := range c.Advisor.Providers {
		p := &c.Advisor.Providers[i]
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = getenv(p.APIKeyEnv)
		}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config key rather than the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New(fieldMessage(verrs[0]))
		}
		return err
	}

	seen := make(map[string]bool, len(c.Assets))
	for _, a := range c.Assets {
		if seen[a.Symbol] {
			return fmt.Errorf("assets: duplicate symbol %q", a.Symbol)
		}
		seen[a.Symbol] = true
		if (a.StopMultiplier > 0) != (a.TargetMultiplier > 0) {
			return fmt.Errorf("assets[%s]: stop_multiplier and target_multiplier must be set together", a.Symbol)
		}
	}

	if c.Advisor.Providers[0].APIKey == "" {
		p := c.Advisor.Providers[0]
		if p.APIKeyEnv != "" {
			return fmt.Errorf("advisor.providers[0] (%s): API key is required, set %s or api_key", p.Name, p.APIKeyEnv)
		}
		return fmt.Errorf("advisor.providers[0] (%s): api_key is required", p.Name)
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// UsableProviders returns providers that have a key, in order, and the
// names of those skipped for lack of one.
func (c *Config) UsableProviders() (usable []ProviderConfig, skipped []string) {
	for _, p := range c.Advisor.Providers {
		if p.APIKey == "" {
			skipped = append(skipped, p.Name)
			continue
		}
		usable = append(usable, p)
	}
	return usable, skipped
}
