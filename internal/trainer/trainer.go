// Package trainer downloads candles, fits the direction classifier,
// backtests its signals and saves the model.
package trainer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rewired-gh/rugoracle/internal/backtest"
	"github.com/rewired-gh/rugoracle/internal/features"
	"github.com/rewired-gh/rugoracle/internal/gbm"
	"github.com/rewired-gh/rugoracle/internal/logger"
	"github.com/rewired-gh/rugoracle/internal/models"
)

// CandleSource yields historical candles.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, pageSize, total int) ([]models.Candle, error)
}

// Recorder persists trainer runs. It may be nil.
type Recorder interface {
	AddTrainingRun(r *models.TrainingRun) error
}

// Config selects the market, feature periods, booster and backtest settings.
type Config struct {
	Symbol       string
	Interval     string
	PageSize     int
	TotalCandles int
	SMAFast      int
	SMASlow      int
	Params       gbm.Params
	Backtest     backtest.Config
	ModelPath    string
}

// Report holds everything one training run produced.
type Report struct {
	Run      models.TrainingRun
	Model    *gbm.Model
	Backtest *backtest.Result
}

// Trainer runs the training pipeline.
type Trainer struct {
	source   CandleSource
	recorder Recorder
	config   Config
}

// New creates a trainer. recorder may be nil.
func New(source CandleSource, recorder Recorder, config Config) *Trainer {
	if config.Backtest.PeriodsPerYear <= 0 {
		config.Backtest.PeriodsPerYear = PeriodsPerYear(config.Interval)
	}
	return &Trainer{source: source, recorder: recorder, config: config}
}

// Run executes the full pipeline. The backtest replays the same rows the
// model was fitted on, so its figures are in-sample.
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	cfg := t.config

	logger.Info("Downloading %d %s candles for %s", cfg.TotalCandles, cfg.Interval, cfg.Symbol)
	candles, err := t.source.FetchCandles(ctx, cfg.Symbol, cfg.Interval, cfg.PageSize, cfg.TotalCandles)
	if err != nil {
		return nil, fmt.Errorf("failed to download candles: %w", err)
	}

	table, err := features.Build(candles, cfg.SMAFast, cfg.SMASlow)
	if err != nil {
		return nil, fmt.Errorf("failed to build features: %w", err)
	}
	x, y := table.X(), table.Y()
	logger.Info("Built %d training rows from %d candles (features: %v)", len(x), len(candles), table.Columns())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("Training classifier (%d estimators, depth %d, learning rate %g)",
		cfg.Params.NEstimators, cfg.Params.MaxDepth, cfg.Params.LearningRate)
	start := time.Now()
	model, err := gbm.Fit(x, y, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}
	model.Features = table.Columns()
	logger.Info("Training finished in %v", time.Since(start))

	pred, err := model.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("failed to predict: %w", err)
	}
	accuracy := gbm.Accuracy(pred, y)

	logger.Warn("Backtest uses in-sample predictions; results overstate live performance")
	entries, exits := backtest.SignalsFromPredictions(pred)
	bt, err := backtest.Run(table.Closes(), entries, exits, cfg.Backtest)
	if err != nil {
		return nil, fmt.Errorf("failed to backtest: %w", err)
	}
	logResult(accuracy, bt)

	if err := model.Save(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}
	logger.Info("Model saved to %s", cfg.ModelPath)

	report := &Report{
		Run: models.TrainingRun{
			Symbol:          cfg.Symbol,
			Interval:        cfg.Interval,
			Candles:         len(candles),
			Rows:            len(x),
			Accuracy:        accuracy,
			TotalReturn:     bt.Metrics.TotalReturn,
			BenchmarkReturn: bt.Metrics.BenchmarkReturn,
			Trades:          bt.Metrics.NumTrades,
			ModelPath:       cfg.ModelPath,
			CreatedAt:       time.Now(),
		},
		Model:    model,
		Backtest: bt,
	}
	if t.recorder != nil {
		if err := t.recorder.AddTrainingRun(&report.Run); err != nil {
			logger.Warn("Failed to record training run: %v", err)
		}
	}
	return report, nil
}

func logResult(accuracy float64, bt *backtest.Result) {
	m := bt.Metrics
	logger.Info("Results:")
	logger.Info("  In-sample accuracy: %.2f%%", accuracy*100)
	logger.Info("  Final equity:       %.2f", bt.FinalEquity)
	logger.Info("  Total return:       %.2f%%", m.TotalReturn*100)
	logger.Info("  Benchmark return:   %.2f%%", m.BenchmarkReturn*100)
	logger.Info("  Max drawdown:       %.2f%%", m.MaxDrawdown*100)
	logger.Info("  Closed trades:      %d (open position: %v)", m.NumTrades, bt.OpenPosition)
	logger.Info("  Win rate:           %.2f%%", m.WinRate*100)
	logger.Info("  Profit factor:      %.2f", m.ProfitFactor)
	logger.Info("  Sharpe ratio:       %.2f", m.Sharpe)
	logger.Info("  Total fees paid:    %.4f", m.TotalFees)
}

// PeriodsPerYear converts an exchange kline interval such as "1h" or "1d"
// into the number of bars per year. Unknown intervals assume hourly bars.
func PeriodsPerYear(interval string) float64 {
	const year = 365 * 24 * time.Hour
	hourly := float64(year / time.Hour)
	if len(interval) < 2 {
		return hourly
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n < 1 {
		return hourly
	}
	var unit time.Duration
	switch interval[len(interval)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'M':
		return 12 / float64(n)
	default:
		return hourly
	}
	return float64(year) / float64(time.Duration(n)*unit)
}
