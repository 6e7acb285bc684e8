package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Set some test environment variables
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("QUOTE_CACHE_TTL", "30s"); err != nil {
		t.Fatalf("Failed to set QUOTE_CACHE_TTL: %v", err)
	}
	if err := os.Setenv("STARTING_CASH", "50000.00"); err != nil {
		t.Fatalf("Failed to set STARTING_CASH: %v", err)
	}
	if err := os.Setenv("JWT_SECRET", "test-secret"); err != nil {
		t.Fatalf("Failed to set JWT_SECRET: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("QUOTE_CACHE_TTL")
		_ = os.Unsetenv("STARTING_CASH")
		_ = os.Unsetenv("JWT_SECRET")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Cache.QuoteTTL != 30*time.Second {
		t.Errorf("Cache.QuoteTTL = %v, want %v", cfg.Cache.QuoteTTL, 30*time.Second)
	}

	if cfg.Trading.StartingCash != "50000.00" {
		t.Errorf("Trading.StartingCash = %v, want %v", cfg.Trading.StartingCash, "50000.00")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	if err := os.Setenv("JWT_SECRET", "test-secret"); err != nil {
		t.Fatalf("Failed to set JWT_SECRET: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("JWT_SECRET")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Trading.StartingCash != "100000.00" {
		t.Errorf("Trading.StartingCash = %v, want 100000.00", cfg.Trading.StartingCash)
	}
	if cfg.Trading.LockTimeout != 3*time.Second {
		t.Errorf("Trading.LockTimeout = %v, want 3s", cfg.Trading.LockTimeout)
	}
	if cfg.Cache.RecommendationMaxAge != 24*time.Hour {
		t.Errorf("Cache.RecommendationMaxAge = %v, want 24h", cfg.Cache.RecommendationMaxAge)
	}
}

func TestValidateRejectsBadStartingCash(t *testing.T) {
	if err := os.Setenv("JWT_SECRET", "test-secret"); err != nil {
		t.Fatalf("Failed to set JWT_SECRET: %v", err)
	}
	if err := os.Setenv("STARTING_CASH", "a-lot"); err != nil {
		t.Fatalf("Failed to set STARTING_CASH: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("JWT_SECRET")
		_ = os.Unsetenv("STARTING_CASH")
	}()

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() accepted non-numeric STARTING_CASH")
	}
}

func TestValidateRejectsEmptyJWTSecret(t *testing.T) {
	_ = os.Unsetenv("JWT_SECRET")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() accepted an empty JWT_SECRET")
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	if err := os.Setenv("TEST_DURATION", "90s"); err != nil {
		t.Fatalf("Failed to set env var: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("TEST_DURATION")
	}()

	if got := getEnvAsDuration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvAsDuration = %v, want 90s", got)
	}
	if got := getEnvAsDuration("TEST_DURATION_MISSING", time.Second); got != time.Second {
		t.Errorf("getEnvAsDuration default = %v, want 1s", got)
	}
}
