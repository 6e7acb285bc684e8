// Package config provides configuration management for the paper trading
// service. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Trading    TradingConfig
	Quote      QuoteConfig
	Prediction PredictionConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration (daily market bars)
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// AuthConfig holds token issuance configuration
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TradingConfig holds ledger configuration
type TradingConfig struct {
	// StartingCash is the virtual cash granted to every new portfolio,
	// expressed as a decimal string.
	StartingCash string
	// LockTimeout bounds how long a trade waits for the portfolio row lock.
	LockTimeout time.Duration
}

// QuoteConfig holds external quote source configuration
type QuoteConfig struct {
	PrimaryURL   string
	SecondaryURL string
	APIKey       string
	Timeout      time.Duration
	// RequestsPerMinute paces calls against the provider quota.
	RequestsPerMinute int
}

// PredictionConfig holds ML prediction source configuration
type PredictionConfig struct {
	URL     string
	Timeout time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	// QuoteTTL is how long a live quote stays fresh in Redis.
	QuoteTTL time.Duration
	// RecommendationMaxAge bounds how stale a cached recommendation may be
	// and still be served when the prediction source is down.
	RecommendationMaxAge time.Duration
}

// RateLimitConfig holds per-tier API rate limits (requests per second)
type RateLimitConfig struct {
	FreeTier    int
	PremiumTier int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "paper_trader"),
				User:           getEnv("POSTGRES_USER", "trader"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "paper_trader"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  getEnvAsDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
			RefreshTokenTTL: getEnvAsDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		Trading: TradingConfig{
			StartingCash: getEnv("STARTING_CASH", "100000.00"),
			LockTimeout:  getEnvAsDuration("TRADE_LOCK_TIMEOUT", 3*time.Second),
		},
		Quote: QuoteConfig{
			PrimaryURL:        getEnv("QUOTE_PRIMARY_URL", ""),
			SecondaryURL:      getEnv("QUOTE_SECONDARY_URL", ""),
			APIKey:            getEnv("QUOTE_API_KEY", ""),
			Timeout:           getEnvAsDuration("QUOTE_TIMEOUT", 5*time.Second),
			RequestsPerMinute: getEnvAsInt("QUOTE_REQUESTS_PER_MINUTE", 60),
		},
		Prediction: PredictionConfig{
			URL:     getEnv("PREDICTION_URL", ""),
			Timeout: getEnvAsDuration("PREDICTION_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			QuoteTTL:             getEnvAsDuration("QUOTE_CACHE_TTL", 20*time.Second),
			RecommendationMaxAge: getEnvAsDuration("RECOMMENDATION_MAX_AGE", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			FreeTier:    getEnvAsInt("RATE_LIMIT_FREE_TIER", 10),
			PremiumTier: getEnvAsInt("RATE_LIMIT_PREMIUM_TIER", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Database.Postgres.MaxConnections <= 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive")
	}
	if c.Trading.LockTimeout <= 0 {
		return fmt.Errorf("TRADE_LOCK_TIMEOUT must be positive")
	}
	if c.Cache.RecommendationMaxAge <= 0 {
		return fmt.Errorf("RECOMMENDATION_MAX_AGE must be positive")
	}
	if _, err := strconv.ParseFloat(c.Trading.StartingCash, 64); err != nil {
		return fmt.Errorf("STARTING_CASH is not a valid amount: %w", err)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
