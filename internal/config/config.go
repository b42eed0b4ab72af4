// Package config loads process-wide settings from the environment into a
// single typed struct, handed to every service constructor at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all process-wide configuration for the engine.
type Config struct {
	Server     ServerConfig
	Auth       AuthConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Credit     CreditConfig
	Sync       SyncConfig
	Commitment CommitmentConfig
	Extraction ExtractionConfig
	Aggregator AggregatorConfig
	LLM        LLMConfig
	Worker     WorkerConfig
	LogLevel   string
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host              string
	Port              int
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string
	RateLimitPerMinute int
}

// AuthConfig holds the ingress bearer-token and webhook signature secrets.
type AuthConfig struct {
	JWTSecret     string
	WebhookSecret string
}

// AggregatorConfig holds the connection details for the third-party mail
// aggregator client (internal/aggregator), including its OAuth2
// client-credentials token source.
type AggregatorConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// LLMConfig holds the completion-model endpoint the extraction contract
// calls through internal/llm.
type LLMConfig struct {
	Endpoint string
	APIKey   string
	Model    string
}

// WorkerConfig holds cmd/worker's poll loop and health-server settings.
type WorkerConfig struct {
	Concurrency     int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	HealthPort      int
}

// DatabaseConfig holds the Postgres connection string.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds the Redis connection string.
type RedisConfig struct {
	URL string
}

// CreditConfig holds the linear token→credit conversion rates (spec.md §4.3).
type CreditConfig struct {
	InputTokensPerCredit    float64
	OutputTokensPerCredit   float64
	DefaultFreeTrialCredits float64
}

// SyncConfig holds the backfill message caps and batch size (spec.md §4.7);
// the lookback window is the backfill.WindowBefore constant.
type SyncConfig struct {
	MaxInbox int
	MaxSent  int
	Batch    int
}

// CommitmentConfig holds query-side defaults (spec.md §4.4, §4.2).
type CommitmentConfig struct {
	UpcomingDays  int
	DefaultLimit  int
}

// ExtractionConfig holds retry/budget limits for the extraction contract (spec.md §4.5).
type ExtractionConfig struct {
	Retries   int
	MaxTokens int
}

// Load builds a Config from environment variables, applying the defaults
// named in spec.md §6 "Environment" wherever a variable is unset.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Credit: CreditConfig{
			InputTokensPerCredit:    getEnvFloat("INPUT_TOKENS_PER_CREDIT", 1000),
			OutputTokensPerCredit:   getEnvFloat("OUTPUT_TOKENS_PER_CREDIT", 500),
			DefaultFreeTrialCredits: getEnvFloat("DEFAULT_FREE_TRIAL_CREDITS", 100),
		},
		Sync: SyncConfig{
			MaxInbox: getEnvInt("INITIAL_SYNC_MAX_INBOX", 100),
			MaxSent:  getEnvInt("INITIAL_SYNC_MAX_SENT", 100),
			Batch:    getEnvInt("INITIAL_SYNC_BATCH", 50),
		},
		Commitment: CommitmentConfig{
			UpcomingDays: getEnvInt("COMMITMENT_UPCOMING_DAYS", 7),
			DefaultLimit: getEnvInt("COMMITMENT_DEFAULT_LIMIT", 100),
		},
		Extraction: ExtractionConfig{
			Retries:   getEnvInt("EXTRACTION_RETRIES", 2),
			MaxTokens: getEnvInt("EXTRACTION_MAX_TOKENS", 1500),
		},
		Aggregator: AggregatorConfig{
			BaseURL:      getEnv("AGGREGATOR_BASE_URL", ""),
			TokenURL:     getEnv("AGGREGATOR_TOKEN_URL", ""),
			ClientID:     getEnv("AGGREGATOR_CLIENT_ID", ""),
			ClientSecret: getEnv("AGGREGATOR_CLIENT_SECRET", ""),
		},
		LLM: LLMConfig{
			Endpoint: getEnv("LLM_ENDPOINT", ""),
			APIKey:   getEnv("LLM_API_KEY", ""),
			Model:    getEnv("LLM_MODEL", "commitment-extractor-v1"),
		},
		Worker: WorkerConfig{
			Concurrency:     getEnvInt("WORKER_CONCURRENCY", 8),
			PollInterval:    getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
			ShutdownTimeout: getEnvDuration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnvInt("WORKER_HEALTH_PORT", 9090),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Redis.URL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
