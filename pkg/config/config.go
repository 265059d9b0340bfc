package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/huddlehq/huddle/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Mongo     MongoConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Auth      AuthConfig
	DualWrite DualWriteConfig
	RateLimit RateLimitConfig
	LogLevel  observability.LogLevel
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// MongoConfig holds primary-store configuration
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// PostgresConfig holds secondary-store configuration
type PostgresConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis configuration for rate limiting
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds JWT verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// DualWriteConfig controls the migration shim
type DualWriteConfig struct {
	Enabled bool
	// ReconcileSchedule is a cron expression for the retry job; empty
	// disables reconciliation
	ReconcileSchedule string
	ReconcileBatch    int
}

// RateLimitConfig holds request rate limit settings
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("HUDDLE_HOST", "0.0.0.0"),
			Port:            getEnv("HUDDLE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("HUDDLE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HUDDLE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("HUDDLE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("HUDDLE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("HUDDLE_HEALTH_PORT", "9090"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("HUDDLE_MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("HUDDLE_MONGO_DATABASE", "huddle"),
			Timeout:  getEnvDuration("HUDDLE_MONGO_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			URL:         getEnv("HUDDLE_POSTGRES_URL", ""),
			MaxConns:    getEnvInt("HUDDLE_POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("HUDDLE_POSTGRES_MIN_CONNS", 2),
			Timeout:     getEnvDuration("HUDDLE_POSTGRES_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("HUDDLE_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("HUDDLE_REDIS_ADDR", ""),
			Password: getEnv("HUDDLE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("HUDDLE_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("HUDDLE_JWT_SECRET", ""),
			Issuer:    getEnv("HUDDLE_JWT_ISSUER", "huddle"),
		},
		DualWrite: DualWriteConfig{
			Enabled:           getEnvBool("HUDDLE_DUAL_WRITE_ENABLED", true),
			ReconcileSchedule: getEnv("HUDDLE_DUAL_WRITE_RECONCILE_SCHEDULE", "@every 5m"),
			ReconcileBatch:    getEnvInt("HUDDLE_DUAL_WRITE_RECONCILE_BATCH", 100),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("HUDDLE_RATE_LIMIT_ENABLED", true),
			RequestsPerWindow: getEnvInt("HUDDLE_RATE_LIMIT_REQUESTS", 300),
			WindowDuration:    getEnvDuration("HUDDLE_RATE_LIMIT_WINDOW", time.Minute),
		},
		LogLevel: observability.ParseLogLevel(getEnv("HUDDLE_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo URI is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo database name is required")
	}

	if c.DualWrite.Enabled && c.Postgres.URL == "" {
		return fmt.Errorf("postgres URL is required when dual-write is enabled")
	}
	if c.DualWrite.ReconcileBatch <= 0 {
		return fmt.Errorf("reconcile batch size must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.RateLimit.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required when rate limiting is enabled")
		}
		if c.RateLimit.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate limit requests per window must be positive")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
