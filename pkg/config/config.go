package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/canopyhq/canopy/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Cache / notification configuration
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig
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

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// CacheConfig holds the permission cache and push channel configuration.
// The whole block is optional: with Enabled=false the service runs with a
// no-op invalidation dispatcher.
type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration
	L1Size        int
	SweepInterval time.Duration
	PushChannel   string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CANOPY_HOST", "0.0.0.0"),
		Port:            getEnv("CANOPY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CANOPY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CANOPY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CANOPY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CANOPY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CANOPY_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("CANOPY_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("CANOPY_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("CANOPY_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("CANOPY_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("CANOPY_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("CANOPY_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

// loadCacheConfig loads the permission cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:       getEnvBool("CANOPY_CACHE_ENABLED", false),
		RedisURL:      getEnv("CANOPY_REDIS_URL", "redis://localhost:6379"),
		RedisPassword: getEnv("CANOPY_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("CANOPY_REDIS_DB", 0),
		SnapshotTTL:   getEnvDuration("CANOPY_PERMCACHE_TTL", 5*time.Minute),
		L1Size:        getEnvInt("CANOPY_PERMCACHE_L1_SIZE", 4096),
		SweepInterval: getEnvDuration("CANOPY_PERMCACHE_SWEEP_INTERVAL", time.Minute),
		PushChannel:   getEnv("CANOPY_PUSH_CHANNEL", "canopy:permissions"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("CANOPY_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CANOPY_METRICS_ENABLED", true),
	}
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

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Cache.Enabled {
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required when the cache is enabled")
		}
		if c.Cache.L1Size <= 0 {
			return fmt.Errorf("permission cache L1 size must be positive")
		}
		if c.Cache.SnapshotTTL <= 0 {
			return fmt.Errorf("permission cache TTL must be positive")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
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
