package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go-fingerprint-quality/internal/logger"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	LogLevel logrus.Level

	// Engine
	Workers        int
	ModelInfoPath  string
	TrimWhiteFrame bool
	DefaultPPI     int

	// Score cache; an empty RedisAddr keeps scores in memory
	RedisAddr string
	RedisTTL  time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	AzureStorageAccount string
	AzureStorageKey     string

	// LocalImageRoot enables file sources confined to this directory
	LocalImageRoot string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob credentials are configured
func (c *Config) AzureEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:                getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                getEnvOrDefault("PORT", "8080"),
		RequestTimeout:      parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:   parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:     parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize:  parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		Workers:             int(parseIntOrDefault("WORKERS", 0)),
		ModelInfoPath:       strings.TrimSpace(os.Getenv("MODEL_INFO_PATH")),
		TrimWhiteFrame:      parseBoolOrDefault("TRIM_WHITE_FRAME", false),
		DefaultPPI:          int(parseIntOrDefault("DEFAULT_PPI", 500)),
		RedisAddr:           strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisTTL:            parseDurationOrDefault("REDIS_TTL", 24*time.Hour),
		RateLimitRPS:        parseFloatOrDefault("RATE_LIMIT_RPS", 10),
		RateLimitBurst:      int(parseIntOrDefault("RATE_LIMIT_BURST", 20)),
		AzureStorageAccount: strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureStorageKey:     strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),
		LocalImageRoot:      strings.TrimSpace(os.Getenv("LOCAL_IMAGE_ROOT")),
	}

	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.RequestTimeout <= 0 || cfg.ImageFetchTimeout <= 0 || cfg.AnalysisTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			cfg.RequestTimeout, cfg.ImageFetchTimeout, cfg.AnalysisTimeout)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("WORKERS must be >= 0 (got %d)", cfg.Workers)
	}
	if cfg.DefaultPPI <= 0 {
		return nil, fmt.Errorf("DEFAULT_PPI must be > 0 (got %d)", cfg.DefaultPPI)
	}
	if cfg.RateLimitRPS < 0 || cfg.RateLimitBurst < 0 {
		return nil, fmt.Errorf("rate limit must be >= 0 (got rps=%g, burst=%d)", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if (cfg.AzureStorageAccount == "") != (cfg.AzureStorageKey == "") {
		return nil, fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
