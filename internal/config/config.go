/**
 * Configuration for the OCR highlight worker
 *
 * Loads configuration from environment variables matching .env.highlight
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Block sources the worker can load OCR blocks from
const (
	BlockSourcePostgres = "postgres"
	BlockSourceHTTP     = "http"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue, shared block cache, result events)
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// FileProcess API (block source when BlockSource is "http")
	FileProcessAPIURL string
	FileProcessAPIKey string

	// Block loading
	BlockSource   string
	BlockCacheTTL time.Duration
	FetchTimeout  time.Duration

	// HTTP API
	HTTPPort        string
	HighlightAPIKey string

	// Queue configuration
	QueueName         string
	WorkerConcurrency int
	ProcessingTimeout int // milliseconds

	// Tesseract configuration (CLI only)
	TesseractLanguages []string

	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:           getEnvOrDefault("REDIS_URL", "redis://nexus-redis:6379"),
		DatabaseURL:        getEnvOrDefault("DATABASE_URL", ""),
		FileProcessAPIURL:  getEnvOrDefault("FILEPROCESS_API_URL", "http://nexus-fileprocess-api:8096"),
		FileProcessAPIKey:  getEnvOrDefault("FILEPROCESS_API_KEY", ""),
		BlockSource:        strings.ToLower(getEnvOrDefault("BLOCK_SOURCE", BlockSourcePostgres)),
		BlockCacheTTL:      getEnvAsDurationOrDefault("BLOCK_CACHE_TTL", 30*time.Minute),
		FetchTimeout:       getEnvAsDurationOrDefault("FETCH_TIMEOUT", 30*time.Second),
		HTTPPort:           getEnvOrDefault("HTTP_PORT", "8097"),
		HighlightAPIKey:    getEnvOrDefault("HIGHLIGHT_API_KEY", ""),
		QueueName:          getEnvOrDefault("QUEUE_NAME", "highlight"),
		WorkerConcurrency:  getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		ProcessingTimeout:  getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 30000), // 30 seconds
		TesseractLanguages: getEnvAsListOrDefault("TESSERACT_LANGUAGES", []string{"eng"}),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	switch c.BlockSource {
	case BlockSourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when BLOCK_SOURCE=%s", BlockSourcePostgres)
		}
	case BlockSourceHTTP:
		if c.FileProcessAPIURL == "" {
			return fmt.Errorf("FILEPROCESS_API_URL is required when BLOCK_SOURCE=%s", BlockSourceHTTP)
		}
	default:
		return fmt.Errorf("BLOCK_SOURCE must be %q or %q, got %q", BlockSourcePostgres, BlockSourceHTTP, c.BlockSource)
	}

	if c.HighlightAPIKey == "" {
		return fmt.Errorf("HIGHLIGHT_API_KEY is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout < 1000 || c.ProcessingTimeout > 600000 { // 1s to 10min
		return fmt.Errorf("PROCESSING_TIMEOUT must be between 1000 and 600000 ms, got %d", c.ProcessingTimeout)
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %v", c.FetchTimeout)
	}

	if c.BlockCacheTTL <= 0 {
		return fmt.Errorf("BLOCK_CACHE_TTL must be positive, got %v", c.BlockCacheTTL)
	}

	return nil
}

// ProcessingTimeoutDuration returns the queue task timeout
func (c *Config) ProcessingTimeoutDuration() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDurationOrDefault gets environment variable as a Go duration or returns default
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsListOrDefault splits a comma-separated environment variable
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
