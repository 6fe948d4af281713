package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Env        string           `yaml:"env"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Typesense  TypesenseConfig  `yaml:"typesense"`
	Extraction ExtractionConfig `yaml:"extraction"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Sources    SourcesConfig    `yaml:"sources"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	OTEL       OTELConfig       `yaml:"otel"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
}

// ExtractionConfig selects the LLM backend used for field extraction.
type ExtractionConfig struct {
	Provider string        `yaml:"provider"` // "openai" or "gemini"
	Timeout  time.Duration `yaml:"timeout"`
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	RateLimitRPM   int    `yaml:"rate_limit_rpm"`
	RateLimitBurst int    `yaml:"rate_limit_burst"`
}

// GeminiConfig holds Gemini configuration
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// SourcesConfig holds the ingestion feed locations.
type SourcesConfig struct {
	CuratedBaseURL  string `yaml:"curated_base_url"`
	CuratedFeed     string `yaml:"curated_feed"`
	CuratedStatus   string `yaml:"curated_status"`
	TelegramChannel string `yaml:"telegram_channel"`
	TelegramLimit   int    `yaml:"telegram_limit"`
	CSVLocation     string `yaml:"csv_location"`
}

// PipelineConfig holds normalization and enrichment settings.
type PipelineConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	MaxAttempts    int           `yaml:"max_attempts"`
	EnrichDelay    time.Duration `yaml:"enrich_delay"`
	EnrichOnIngest bool          `yaml:"enrich_on_ingest"`
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Endpoint       string `yaml:"endpoint"`
	Enabled        bool   `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Env: "production",
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			IdempotencyTTL: 24 * time.Hour,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Database:        "fundraises",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    6379,
		},
		Typesense: TypesenseConfig{
			URL:    "http://localhost:8108",
			APIKey: "xyz",
		},
		Extraction: ExtractionConfig{
			Provider: "openai",
			Timeout:  30 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4o-mini",
			BaseURL:        "https://api.openai.com/v1",
			RateLimitRPM:   60,
			RateLimitBurst: 5,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Sources: SourcesConfig{
			CuratedBaseURL:  "https://curatedotfun-floral-sun-1539.fly.dev",
			CuratedFeed:     "cryptofundraise",
			CuratedStatus:   "approved",
			TelegramChannel: "cryptofundraises",
			TelegramLimit:   10,
		},
		Pipeline: PipelineConfig{
			BatchSize:      10,
			MaxAttempts:    3,
			EnrichDelay:    time.Second,
			EnrichOnIngest: true,
		},
		OTEL: OTELConfig{
			ServiceName:    "fundraise-tracker",
			ServiceVersion: "1.0.0",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load loads configuration from environment variables on top of the defaults
func Load() (*Config, error) {
	cfg := Defaults()
	applyEnv(&cfg)
	return &cfg, nil
}

// LoadFile overlays a YAML file on the defaults, then applies environment
// variables. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(c *Config) {
	c.Env = getEnv("APP_ENV", c.Env)

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)
	c.Server.IdempotencyTTL = getEnvAsDuration("INGEST_IDEMPOTENCY_TTL", c.Server.IdempotencyTTL)
	c.Server.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvAsInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)

	c.Typesense.Enabled = getEnvAsBool("TYPESENSE_ENABLED", c.Typesense.Enabled)
	c.Typesense.URL = getEnv("TYPESENSE_URL", c.Typesense.URL)
	c.Typesense.APIKey = getEnv("TYPESENSE_API_KEY", c.Typesense.APIKey)

	c.Extraction.Provider = strings.ToLower(getEnv("EXTRACTION_PROVIDER", c.Extraction.Provider))
	c.Extraction.Timeout = getEnvAsDuration("EXTRACTION_TIMEOUT", c.Extraction.Timeout)

	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.Model = getEnv("OPENAI_MODEL", c.OpenAI.Model)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.RateLimitRPM = getEnvAsInt("OPENAI_RATE_LIMIT_RPM", c.OpenAI.RateLimitRPM)
	c.OpenAI.RateLimitBurst = getEnvAsInt("OPENAI_RATE_LIMIT_BURST", c.OpenAI.RateLimitBurst)

	c.Gemini.APIKey = getEnv("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.Model = getEnv("GEMINI_MODEL", c.Gemini.Model)

	c.Sources.CuratedBaseURL = getEnv("CURATED_BASE_URL", c.Sources.CuratedBaseURL)
	c.Sources.CuratedFeed = getEnv("CURATED_FEED", c.Sources.CuratedFeed)
	c.Sources.CuratedStatus = getEnv("CURATED_STATUS", c.Sources.CuratedStatus)
	c.Sources.TelegramChannel = getEnv("TELEGRAM_CHANNEL", c.Sources.TelegramChannel)
	c.Sources.TelegramLimit = getEnvAsInt("TELEGRAM_LIMIT", c.Sources.TelegramLimit)
	c.Sources.CSVLocation = getEnv("CSV_LOCATION", c.Sources.CSVLocation)

	c.Pipeline.BatchSize = getEnvAsInt("ENRICH_BATCH_SIZE", c.Pipeline.BatchSize)
	c.Pipeline.MaxAttempts = getEnvAsInt("ENRICH_MAX_ATTEMPTS", c.Pipeline.MaxAttempts)
	c.Pipeline.EnrichDelay = getEnvAsDuration("ENRICH_DELAY", c.Pipeline.EnrichDelay)
	c.Pipeline.EnrichOnIngest = getEnvAsBool("ENRICH_ON_INGEST", c.Pipeline.EnrichOnIngest)

	c.OTEL.ServiceName = getEnv("OTEL_SERVICE_NAME", c.OTEL.ServiceName)
	c.OTEL.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", c.OTEL.ServiceVersion)
	c.OTEL.Endpoint = getEnv("OTEL_ENDPOINT", c.OTEL.Endpoint)
	c.OTEL.Enabled = getEnvAsBool("OTEL_ENABLED", c.OTEL.Enabled)

	c.Metrics.Enabled = getEnvAsBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("METRICS_PATH", c.Metrics.Path)
}

// Validate reports configuration that makes every invocation fail.
func (c *Config) Validate() error {
	switch c.Extraction.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EXTRACTION_PROVIDER=openai")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when EXTRACTION_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown extraction provider %q", c.Extraction.Provider)
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline batch size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.MaxAttempts <= 0 {
		return fmt.Errorf("pipeline max attempts must be positive, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Pipeline.EnrichDelay < 0 {
		return fmt.Errorf("pipeline enrich delay must not be negative")
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
