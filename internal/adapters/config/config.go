package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Server     ServerConfig     `envconfig:"SERVER"`
	Forecast   ForecastConfig   `envconfig:"FORECAST"`
	Backtest   BacktestConfig   `envconfig:"BACKTEST"`
	Database   DatabaseConfig   `envconfig:"DATABASE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	AI         AIConfig         `envconfig:"AI"`
	Worker     WorkerConfig     `envconfig:"WORKER"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
}

// ServerConfig represents HTTP server parameters
type ServerConfig struct {
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"4m"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// ForecastConfig represents forecasting parameters
type ForecastConfig struct {
	DefaultHorizonDays int           `envconfig:"FORECAST_DEFAULT_HORIZON_DAYS" default:"7"`
	MaxHorizonDays     int           `envconfig:"FORECAST_MAX_HORIZON_DAYS" default:"30"`
	HistoryWindowDays  int           `envconfig:"FORECAST_HISTORY_WINDOW_DAYS" default:"60"`
	ConfidenceFloor    float64       `envconfig:"FORECAST_CONFIDENCE_FLOOR" default:"75.0"`
	KeywordTimeout     time.Duration `envconfig:"FORECAST_KEYWORD_TIMEOUT" default:"30s"`
	AnalysisTimeout    time.Duration `envconfig:"FORECAST_ANALYSIS_TIMEOUT" default:"3m"`
	CoalesceLockTTL    time.Duration `envconfig:"FORECAST_COALESCE_LOCK_TTL" default:"45s"`
	ShortlistSize      int           `envconfig:"FORECAST_SHORTLIST_SIZE" default:"5"`
}

// BacktestConfig represents backtest parameters
type BacktestConfig struct {
	Timeout     time.Duration `envconfig:"BACKTEST_TIMEOUT" default:"60s"`
	TopOutliers int           `envconfig:"BACKTEST_TOP_OUTLIERS" default:"5"`
}

// DatabaseConfig represents PostgreSQL connection parameters
type DatabaseConfig struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	Name           string `envconfig:"DB_NAME" default:"trendcast"`
	User           string `envconfig:"DB_USER" required:"true"`
	Password       string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`
}

// RedisConfig represents Redis connection parameters for the request
// coalescing lock and shortlist cache
type RedisConfig struct {
	Enabled      bool          `envconfig:"REDIS_ENABLED" default:"true"`
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" required:"false"`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	ShortlistTTL time.Duration `envconfig:"REDIS_SHORTLIST_TTL" default:"15m"`
}

// ClickHouseConfig represents the analytics sink connection
type ClickHouseConfig struct {
	Enabled bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	DSN     string `envconfig:"CLICKHOUSE_DSN" default:"clickhouse://localhost:9000/trendcast"`
}

// TelegramConfig represents the urgent-trend alert bot
type TelegramConfig struct {
	Enabled          bool    `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken         string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	ChatID           int64   `envconfig:"TELEGRAM_CHAT_ID" required:"false"`
	UrgencyThreshold float64 `envconfig:"TELEGRAM_URGENCY_THRESHOLD" default:"80.0"`
}

// AIConfig represents the optional outlier-summary refinement provider
type AIConfig struct {
	Enabled      bool   `envconfig:"AI_ENABLED" default:"false"`
	OpenAIAPIKey string `envconfig:"AI_OPENAI_API_KEY" required:"false"`
	Model        string `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
}

// WorkerConfig represents background worker parameters
type WorkerConfig struct {
	RefreshEnabled  bool          `envconfig:"WORKER_REFRESH_ENABLED" default:"true"`
	RefreshInterval time.Duration `envconfig:"WORKER_REFRESH_INTERVAL" default:"1h"`
	StopTimeout     time.Duration `envconfig:"WORKER_STOP_TIMEOUT" default:"30s"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:""`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Forecast.DefaultHorizonDays < 1 {
		return fmt.Errorf("default_horizon_days must be at least 1")
	}
	if c.Forecast.MaxHorizonDays < c.Forecast.DefaultHorizonDays {
		return fmt.Errorf("max_horizon_days must be >= default_horizon_days")
	}
	if c.Forecast.ConfidenceFloor < 0 || c.Forecast.ConfidenceFloor > 100 {
		return fmt.Errorf("confidence_floor must be between 0 and 100")
	}
	if c.Forecast.HistoryWindowDays < 10 {
		return fmt.Errorf("history_window_days must be at least 10")
	}
	if c.Backtest.TopOutliers < 1 {
		return fmt.Errorf("top_outliers must be at least 1")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required when telegram is enabled")
	}
	if c.Telegram.Enabled && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram chat_id is required when telegram is enabled")
	}
	if c.AI.Enabled && c.AI.OpenAIAPIKey == "" {
		return fmt.Errorf("openai api key is required when ai summaries are enabled")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
