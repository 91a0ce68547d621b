package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/marketsentry/internal/advisor"
	"github.com/rewired-gh/marketsentry/internal/chart"
	"github.com/rewired-gh/marketsentry/internal/config"
	"github.com/rewired-gh/marketsentry/internal/indicator"
	"github.com/rewired-gh/marketsentry/internal/logger"
	"github.com/rewired-gh/marketsentry/internal/markethours"
	"github.com/rewired-gh/marketsentry/internal/marketdata"
	"github.com/rewired-gh/marketsentry/internal/metrics"
	"github.com/rewired-gh/marketsentry/internal/models"
	"github.com/rewired-gh/marketsentry/internal/monitor"
	"github.com/rewired-gh/marketsentry/internal/news"
	"github.com/rewired-gh/marketsentry/internal/risk"
	"github.com/rewired-gh/marketsentry/internal/sentry"
	"github.com/rewired-gh/marketsentry/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

// logNotifier prints reports when Telegram is disabled.
type logNotifier struct{}

func (logNotifier) SendReport(_ context.Context, r models.Report) error {
	logger.Info("Report %s:\n%s", r.ID, telegram.FormatReport(r))
	return nil
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
	}

	usable, skipped := cfg.UsableProviders()
	for _, name := range skipped {
		logger.Warn("AI provider %s has no API key, skipping it", name)
	}
	providers := make([]advisor.Provider, 0, len(usable))
	for _, p := range usable {
		providers = append(providers, advisor.NewOpenAIProvider(advisor.ProviderConfig{
			Name:    p.Name,
			BaseURL: p.BaseURL,
			Model:   p.Model,
			APIKey:  p.APIKey,
		}, cfg.Advisor.Timeout, cfg.Advisor.Temperature))
	}
	chain := advisor.NewChain(providers, advisor.WithObserver(recorder.ProviderAttempt))
	logger.Info("AI provider failover order: %v", chain.Providers())

	var notifier sentry.Notifier = logNotifier{}
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase, cfg.Telegram.Timeout)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		telegramClient.SetMaxMessageLength(cfg.Telegram.MaxMessageLength)
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled, reports go to the log")
	}

	s, err := sentry.New(sentryConfig(cfg), sentry.Deps{
		Market:   marketdata.NewClient(cfg.MarketData.BaseURL, cfg.MarketData.Timeout, cfg.MarketData.MaxRetries),
		News:     news.NewClient(cfg.News.BaseURL, cfg.News.Timeout, cfg.News.Limit),
		Advisor:  chain,
		Chart:    chart.NewRenderer(maxChartBars(cfg)),
		Notifier: notifier,
		Gate:     markethours.New(cfg.MarketHours.Enabled, cfg.MarketHours.MIC, cfg.MarketHours.SessionOnly),
		Metrics:  recorder,
	})
	if err != nil {
		logger.Fatal("Failed to initialize sentry: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if recorder != nil {
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: recorder.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("Serving metrics on %s", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, s.Status)
	}

	logger.Info("Starting sentry (assets: %d, interval: %v, report every %v, shock threshold: %.2f)",
		len(cfg.Assets),
		cfg.Sentry.PollInterval,
		cfg.Sentry.ReportInterval,
		cfg.Assets[0].ShockThreshold,
	)

	ticker := time.NewTicker(cfg.Sentry.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
			logger.Error("Sentry cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial sentry cycle")
	handleCycleResult(s.RunCycle(ctx))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled sentry cycle")
			handleCycleResult(s.RunCycle(ctx))
		}
	}
}

func sentryConfig(cfg *config.Config) sentry.Config {
	ind := indicator.Config{
		RSIWindow:  cfg.Indicators.RSIWindow,
		ATRWindow:  cfg.Indicators.ATRWindow,
		MACDFast:   cfg.Indicators.MACDFast,
		MACDSlow:   cfg.Indicators.MACDSlow,
		MACDSignal: cfg.Indicators.MACDSignal,
		EMAPeriods: cfg.Indicators.EMAPeriods,
		SRLookback: cfg.Indicators.SRLookback,
	}

	assets := make([]sentry.Asset, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		mult, _ := risk.Preset(a.RiskMode)
		if a.StopMultiplier > 0 && a.TargetMultiplier > 0 {
			mult = risk.Multipliers{Stop: a.StopMultiplier, Target: a.TargetMultiplier}
		}
		assets = append(assets, sentry.Asset{
			Symbol:    a.Symbol,
			Name:      a.Name,
			NewsQuery: a.NewsQuery,
			Period:    a.Period,
			Interval:  a.Interval,
			Monitor: monitor.Config{
				ShockThreshold:  a.ShockThreshold,
				FreshnessWindow: cfg.Monitor.FreshnessWindow,
				ReportInterval:  cfg.Sentry.ReportInterval,
				Retention:       cfg.Monitor.Retention,
				QualityGate:     cfg.Monitor.QualityGate,
			},
			Risk:      mult,
			Template:  advisor.Template(a.PromptTemplate),
			ChartBars: a.ChartBars,
		})
	}

	return sentry.Config{
		Assets:      assets,
		AssetPause:  cfg.Sentry.AssetPause,
		TickTimeout: cfg.Sentry.TickTimeout,
		Indicators:  ind,
		Headlines:   cfg.News.Headlines,
	}
}

func maxChartBars(cfg *config.Config) int {
	n := chart.DefaultBars
	for _, a := range cfg.Assets {
		n = max(n, a.ChartBars)
	}
	return n
}
