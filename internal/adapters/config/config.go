package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"strategist/pkg/errors"
)

type Config struct {
	App           AppConfig
	LLM           LLMConfig
	Knowledge     KnowledgeConfig
	Session       SessionConfig
	Validation    ValidationConfig
	Visualization VisualizationConfig
	MarketData    MarketDataConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Metrics       MetricsConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"strategist"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// PromptsDir overrides embedded prompt templates file by file.
	PromptsDir string `envconfig:"PROMPTS_DIR"`
}

type LLMConfig struct {
	Provider    string        `envconfig:"LLM_PROVIDER" default:"openai"`
	Model       string        `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	OpenAIKey   string        `envconfig:"OPENAI_API_KEY"`
	DeepSeekKey string        `envconfig:"DEEPSEEK_API_KEY"`
	GeminiKey   string        `envconfig:"GEMINI_API_KEY"`
	Temperature float64       `envconfig:"LLM_TEMPERATURE" default:"0.2"`
	MaxTokens   int           `envconfig:"LLM_MAX_TOKENS" default:"1024"`
	Timeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	// Per-provider request budget. RateLimitRedis switches to the shared Redis bucket.
	RateLimitRPS   float64 `envconfig:"LLM_RATE_LIMIT_RPS" default:"2"`
	RateLimitBurst int     `envconfig:"LLM_RATE_LIMIT_BURST" default:"4"`
	RateLimitRedis bool    `envconfig:"LLM_RATE_LIMIT_REDIS" default:"false"`
}

// Enabled reports whether any provider credentials are configured.
func (c LLMConfig) Enabled() bool {
	return c.OpenAIKey != "" || c.DeepSeekKey != "" || c.GeminiKey != ""
}

type KnowledgeConfig struct {
	// Backend is one of: memory, postgres, none
	Backend  string        `envconfig:"KNOWLEDGE_BACKEND" default:"memory"`
	SeedFile string        `envconfig:"KNOWLEDGE_SEED_FILE"`
	CacheTTL time.Duration `envconfig:"KNOWLEDGE_CACHE_TTL" default:"10m"`
}

type SessionConfig struct {
	MaxEntries    int           `envconfig:"SESSION_MAX_ENTRIES" default:"1000"`
	TTL           time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m"`
	HistoryWindow int           `envconfig:"SESSION_HISTORY_WINDOW" default:"5"`
}

type ValidationConfig struct {
	RulesFile    string `envconfig:"VALIDATION_RULES_FILE"`
	AutoValidate bool   `envconfig:"VALIDATION_AUTO" default:"true"`
}

type VisualizationConfig struct {
	BaseURL string `envconfig:"VISUALIZATION_BASE_URL" default:"http://localhost:8080/charts"`
}

// ChartURL joins the base URL and a chart id.
func (c VisualizationConfig) ChartURL(chartID string) string {
	return fmt.Sprintf("%s/%s.png", strings.TrimRight(c.BaseURL, "/"), chartID)
}

type MarketDataConfig struct {
	// Backend is one of: memory, clickhouse
	Backend string `envconfig:"MARKET_DATA_BACKEND" default:"memory"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"strategist"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"market"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers       []string `envconfig:"KAFKA_BROKERS"`
	EnvelopeTopic string   `envconfig:"KAFKA_ENVELOPE_TOPIC" default:"strategist.envelopes"`
}

type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" default:":9090"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs errors.MultiError

	switch c.Knowledge.Backend {
	case "memory", "none":
	case "postgres":
		if c.Postgres.Host == "" {
			errs.Add(errors.NewValidationError("POSTGRES_HOST", "required for postgres knowledge backend", c.Postgres.Host))
		}
	default:
		errs.Add(errors.NewValidationError("KNOWLEDGE_BACKEND", "must be memory, postgres or none", c.Knowledge.Backend))
	}

	switch c.MarketData.Backend {
	case "memory":
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			errs.Add(errors.NewValidationError("CLICKHOUSE_HOST", "required for clickhouse market data backend", c.ClickHouse.Host))
		}
	default:
		errs.Add(errors.NewValidationError("MARKET_DATA_BACKEND", "must be memory or clickhouse", c.MarketData.Backend))
	}

	if c.LLM.RateLimitRedis && c.Redis.Host == "" {
		errs.Add(errors.NewValidationError("REDIS_HOST", "required when LLM_RATE_LIMIT_REDIS is set", c.Redis.Host))
	}
	if c.Session.MaxEntries < 0 {
		errs.Add(errors.NewValidationError("SESSION_MAX_ENTRIES", "must not be negative", c.Session.MaxEntries))
	}
	if c.Session.HistoryWindow <= 0 {
		errs.Add(errors.NewValidationError("SESSION_HISTORY_WINDOW", "must be positive", c.Session.HistoryWindow))
	}

	return errs.ToError()
}
