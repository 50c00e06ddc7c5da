package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Scorer   ScorerConfig   `mapstructure:"scorer"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Trainer  TrainerConfig  `mapstructure:"trainer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig holds the token signal API configuration
type SourceConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"` // 1 = single attempt
}

// ScorerConfig holds the rug-pull heuristic thresholds
type ScorerConfig struct {
	LiquidityThreshold  float64       `mapstructure:"liquidity_threshold"`
	MinTokenAge         time.Duration `mapstructure:"min_token_age"`
	SuspiciousKeywords  []string      `mapstructure:"suspicious_keywords"`
	HighConcentration   float64       `mapstructure:"high_concentration"`
	MediumConcentration float64       `mapstructure:"medium_concentration"`
	RiskThreshold       int           `mapstructure:"risk_threshold"`
}

// FilterConfig holds the filter service loop configuration
type FilterConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"` // 0 = run once
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds SQLite persistence configuration
type StorageConfig struct {
	DBPath         string `mapstructure:"db_path"`
	MaxEvaluations int    `mapstructure:"max_evaluations"`
}

// ExchangeConfig holds market data configuration for the trainer
type ExchangeConfig struct {
	APIKey       string `mapstructure:"api_key"`
	SecretKey    string `mapstructure:"secret_key"`
	BaseURL      string `mapstructure:"base_url"`
	Symbol       string `mapstructure:"symbol"`
	Interval     string `mapstructure:"interval"`
	PageSize     int    `mapstructure:"page_size"`
	TotalCandles int    `mapstructure:"total_candles"`
}

// TrainerConfig holds feature, model and backtest configuration
type TrainerConfig struct {
	SMAFast        int     `mapstructure:"sma_fast"`
	SMASlow        int     `mapstructure:"sma_slow"`
	NEstimators    int     `mapstructure:"n_estimators"`
	LearningRate   float64 `mapstructure:"learning_rate"`
	MaxDepth       int     `mapstructure:"max_depth"`
	MinChildWeight float64 `mapstructure:"min_child_weight"`
	Lambda         float64 `mapstructure:"lambda"`
	Fees           float64 `mapstructure:"fees"`
	InitCash       float64 `mapstructure:"init_cash"`
	AllowShort     bool    `mapstructure:"allow_short"`
	ModelPath      string  `mapstructure:"model_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// RUGORACLE_TELEGRAM_BOT_TOKEN overrides telegram.bot_token
	v.SetEnvPrefix("RUGORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("source.endpoint", "https://api.ejemplo.com/senales-token")
	v.SetDefault("source.timeout", "10s")
	v.SetDefault("source.max_retries", 1)

	// Scorer defaults
	v.SetDefault("scorer.liquidity_threshold", 10000.0)
	v.SetDefault("scorer.min_token_age", "24h")
	v.SetDefault("scorer.suspicious_keywords", []string{"scam", "fake", "new", "pump"})
	v.SetDefault("scorer.high_concentration", 0.30)
	v.SetDefault("scorer.medium_concentration", 0.15)
	v.SetDefault("scorer.risk_threshold", 10)

	// Filter defaults
	v.SetDefault("filter.poll_interval", "0s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/rugoracle.db")
	v.SetDefault("storage.max_evaluations", 10000)

	// Exchange defaults
	v.SetDefault("exchange.symbol", "BTCUSDT")
	v.SetDefault("exchange.interval", "1h")
	v.SetDefault("exchange.page_size", 100)
	v.SetDefault("exchange.total_candles", 1000)

	// Trainer defaults
	v.SetDefault("trainer.sma_fast", 50)
	v.SetDefault("trainer.sma_slow", 200)
	v.SetDefault("trainer.n_estimators", 1000)
	v.SetDefault("trainer.learning_rate", 0.3)
	v.SetDefault("trainer.max_depth", 6)
	v.SetDefault("trainer.min_child_weight", 1.0)
	v.SetDefault("trainer.lambda", 1.0)
	v.SetDefault("trainer.fees", 0.0015)
	v.SetDefault("trainer.init_cash", 100.0)
	v.SetDefault("trainer.allow_short", false)
	v.SetDefault("trainer.model_path", "./models/btc_model.json")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Source config
	if c.Source.Endpoint == "" {
		return fmt.Errorf("source.endpoint is required")
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	if c.Source.MaxRetries < 1 {
		return fmt.Errorf("source.max_retries must be at least 1")
	}

	// Validate Scorer config
	if c.Scorer.LiquidityThreshold < 0 {
		return fmt.Errorf("scorer.liquidity_threshold must not be negative")
	}
	if c.Scorer.MinTokenAge < 0 {
		return fmt.Errorf("scorer.min_token_age must not be negative")
	}
	if c.Scorer.MediumConcentration < 0 || c.Scorer.HighConcentration > 1.0 {
		return fmt.Errorf("scorer concentration thresholds must be between 0.0 and 1.0")
	}
	if c.Scorer.MediumConcentration > c.Scorer.HighConcentration {
		return fmt.Errorf("scorer.medium_concentration must not exceed scorer.high_concentration")
	}
	if c.Scorer.RiskThreshold < 0 {
		return fmt.Errorf("scorer.risk_threshold must not be negative")
	}

	// Validate Filter config
	if c.Filter.PollInterval != 0 && c.Filter.PollInterval < 1*time.Minute {
		return fmt.Errorf("filter.poll_interval must be 0 or at least 1 minute")
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

	// Validate Storage config
	if c.Storage.MaxEvaluations < 1 {
		return fmt.Errorf("storage.max_evaluations must be at least 1")
	}

	// Validate Exchange config
	if c.Exchange.Symbol == "" {
		return fmt.Errorf("exchange.symbol is required")
	}
	if c.Exchange.Interval == "" {
		return fmt.Errorf("exchange.interval is required")
	}
	if c.Exchange.PageSize < 1 || c.Exchange.PageSize > 1000 {
		return fmt.Errorf("exchange.page_size must be between 1 and 1000")
	}
	if c.Exchange.TotalCandles < c.Exchange.PageSize {
		return fmt.Errorf("exchange.total_candles must be at least exchange.page_size")
	}

	// Validate Trainer config
	if c.Trainer.SMAFast < 1 || c.Trainer.SMASlow < 1 {
		return fmt.Errorf("trainer SMA periods must be at least 1")
	}
	if c.Trainer.SMASlow >= c.Exchange.TotalCandles {
		return fmt.Errorf("trainer.sma_slow must be smaller than exchange.total_candles")
	}
	if c.Trainer.NEstimators < 1 {
		return fmt.Errorf("trainer.n_estimators must be at least 1")
	}
	if c.Trainer.LearningRate <= 0 || c.Trainer.LearningRate > 1 {
		return fmt.Errorf("trainer.learning_rate must be in (0, 1]")
	}
	if c.Trainer.MaxDepth < 1 {
		return fmt.Errorf("trainer.max_depth must be at least 1")
	}
	if c.Trainer.Fees < 0 || c.Trainer.Fees >= 1 {
		return fmt.Errorf("trainer.fees must be in [0, 1)")
	}
	if c.Trainer.InitCash <= 0 {
		return fmt.Errorf("trainer.init_cash must be positive")
	}
	if c.Trainer.ModelPath == "" {
		return fmt.Errorf("trainer.model_path is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
