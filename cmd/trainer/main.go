package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/rugoracle/internal/backtest"
	"github.com/rewired-gh/rugoracle/internal/config"
	"github.com/rewired-gh/rugoracle/internal/gbm"
	"github.com/rewired-gh/rugoracle/internal/logger"
	"github.com/rewired-gh/rugoracle/internal/market"
	"github.com/rewired-gh/rugoracle/internal/storage"
	"github.com/rewired-gh/rugoracle/internal/trainer"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

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

	var recorder trainer.Recorder
	store, err := storage.New(cfg.Storage.MaxEvaluations, cfg.Storage.DBPath)
	if err != nil {
		logger.Warn("Storage unavailable, training run will not be recorded: %v", err)
	} else {
		recorder = store
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	params := gbm.DefaultParams()
	params.NEstimators = cfg.Trainer.NEstimators
	params.LearningRate = cfg.Trainer.LearningRate
	params.MaxDepth = cfg.Trainer.MaxDepth
	params.MinChildWeight = cfg.Trainer.MinChildWeight
	params.Lambda = cfg.Trainer.Lambda

	bt := backtest.DefaultConfig()
	bt.Fees = cfg.Trainer.Fees
	bt.InitCash = cfg.Trainer.InitCash
	bt.AllowShort = cfg.Trainer.AllowShort
	bt.PeriodsPerYear = trainer.PeriodsPerYear(cfg.Exchange.Interval)

	client := market.NewClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.BaseURL)
	t := trainer.New(client, recorder, trainer.Config{
		Symbol:       cfg.Exchange.Symbol,
		Interval:     cfg.Exchange.Interval,
		PageSize:     cfg.Exchange.PageSize,
		TotalCandles: cfg.Exchange.TotalCandles,
		SMAFast:      cfg.Trainer.SMAFast,
		SMASlow:      cfg.Trainer.SMASlow,
		Params:       params,
		Backtest:     bt,
		ModelPath:    cfg.Trainer.ModelPath,
	})

	report, err := t.Run(ctx)
	if err != nil {
		logger.Fatal("Training failed: %v", err)
	}
	logger.Info("Training run %s complete: %d rows, accuracy %.2f%%",
		report.Run.ID, report.Run.Rows, report.Run.Accuracy*100)
}
