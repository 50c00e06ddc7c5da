package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/rugoracle/internal/config"
	"github.com/rewired-gh/rugoracle/internal/filter"
	"github.com/rewired-gh/rugoracle/internal/logger"
	"github.com/rewired-gh/rugoracle/internal/notify"
	"github.com/rewired-gh/rugoracle/internal/scorer"
	"github.com/rewired-gh/rugoracle/internal/source"
	"github.com/rewired-gh/rugoracle/internal/storage"
	"github.com/rewired-gh/rugoracle/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	once       = flag.Bool("once", false, "Run a single filter pass and exit")
)

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

	store, err := storage.New(cfg.Storage.MaxEvaluations, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	src := source.NewClient(cfg.Source.Timeout, source.ClientConfig{
		MaxRetries: cfg.Source.MaxRetries,
	})

	sc := scorer.New(scorer.Config{
		LiquidityThreshold:  cfg.Scorer.LiquidityThreshold,
		MinTokenAge:         cfg.Scorer.MinTokenAge,
		SuspiciousKeywords:  cfg.Scorer.SuspiciousKeywords,
		HighConcentration:   cfg.Scorer.HighConcentration,
		MediumConcentration: cfg.Scorer.MediumConcentration,
		ApprovalThreshold:   cfg.Scorer.RiskThreshold,
	})

	sinks := notify.Multi{notify.NewConsole(os.Stdout)}
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		sinks = append(sinks, telegramClient)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	pipeline := filter.New(src, sc, sinks, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if *once || cfg.Filter.PollInterval == 0 {
		if _, err := pipeline.Run(ctx, cfg.Source.Endpoint, cfg.Scorer.RiskThreshold); err != nil {
			logger.Error("Filter run failed: %v", err)
		}
		return
	}

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, func() string { return statusText(store) })
	}

	logger.Info("Starting signal filter service (interval: %v, risk threshold: %d, endpoint: %s)",
		cfg.Filter.PollInterval,
		cfg.Scorer.RiskThreshold,
		cfg.Source.Endpoint,
	)

	ticker := time.NewTicker(cfg.Filter.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(sum filter.Summary) {
		if sum.FetchErr != nil {
			consecutiveFailures++
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(ctx, sum.FetchErr); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(ctx, consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	runCycle := func() {
		sum, err := pipeline.Run(ctx, cfg.Source.Endpoint, cfg.Scorer.RiskThreshold)
		if err != nil {
			logger.Warn("Filter cycle interrupted: %v", err)
			return
		}
		handleCycleResult(sum)
		if err := store.RotateEvaluations(); err != nil {
			logger.Warn("Failed to rotate evaluations: %v", err)
		}
	}

	logger.Debug("Running initial filter cycle")
	runCycle()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled filter cycle")
			runCycle()
		}
	}
}
