/**
 * Configuration for the OCR pipeline worker
 *
 * Loads configuration from environment variables; .env files are read by
 * the entrypoint before this runs.
 */

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/textbridge/ocr-worker/internal/figure"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// Qdrant vector database configuration; empty disables vector persistence
	QdrantURL        string
	QdrantCollection string

	// API keys; empty VoyageAPIKey disables document embedding
	VoyageAPIKey string

	// Service URLs; empty DetectorURL disables layout detection and the
	// pipeline runs on OCR boxes alone
	OCREngineURL      string
	DetectorURL       string
	DetectorThreshold float64

	// Worker configuration
	WorkerConcurrency   int
	DetectorConcurrency int
	ProcessingTimeout   int // milliseconds per document
	MaxFileSize         int64

	// Output directory for merged markdown and figure images
	OutputDir string

	// Local verification fallback (Tesseract); off by default
	LocalVerifyEnabled bool

	// Figure pipeline tuning
	Heuristics figure.Heuristics
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:         getEnvOrThrow("DATABASE_URL"),
		QdrantURL:           getEnvOrDefault("QDRANT_URL", ""),
		QdrantCollection:    getEnvOrDefault("QDRANT_COLLECTION", "ocr_documents"),
		VoyageAPIKey:        getEnvOrDefault("VOYAGE_API_KEY", ""),
		OCREngineURL:        getEnvOrThrow("OCR_ENGINE_URL"),
		DetectorURL:         getEnvOrDefault("DETECTOR_URL", ""),
		DetectorThreshold:   getEnvAsFloatOrDefault("DETECTOR_THRESHOLD", 0.5),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		DetectorConcurrency: getEnvAsIntOrDefault("DETECTOR_CONCURRENCY", 2),
		ProcessingTimeout:   getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 1800000), // 30 minutes
		MaxFileSize:         getEnvAsInt64OrDefault("MAX_FILE_SIZE", 536870912),  // 512MB
		OutputDir:           getEnvOrDefault("OUTPUT_DIR", "/var/lib/ocr-worker/output"),
		LocalVerifyEnabled:  getEnvAsBoolOrDefault("LOCAL_VERIFY_ENABLED", false),
		Heuristics:          loadHeuristics(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadHeuristics starts from the calibrated defaults and applies the few
// overrides operators actually retune in practice.
func loadHeuristics() figure.Heuristics {
	h := figure.DefaultHeuristics()
	h.AggressiveRatio = getEnvAsFloatOrDefault("REPAIR_AGGRESSIVE_RATIO", h.AggressiveRatio)
	h.MatchThreshold = getEnvAsFloatOrDefault("MATCH_THRESHOLD", h.MatchThreshold)
	h.CenterTolerance = getEnvAsFloatOrDefault("MATCH_CENTER_TOLERANCE", h.CenterTolerance)
	h.DetectorDPI = getEnvAsFloatOrDefault("DETECTOR_DPI", h.DetectorDPI)
	h.ReferenceDPI = getEnvAsFloatOrDefault("REFERENCE_DPI", h.ReferenceDPI)
	h.OCRFallbackEnabled = getEnvAsBoolOrDefault("OCR_FALLBACK_ENABLED", h.OCRFallbackEnabled)
	h.VerifyMinConfidence = getEnvAsFloatOrDefault("VERIFY_MIN_CONFIDENCE", h.VerifyMinConfidence)
	return h
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.OCREngineURL == "" {
		return fmt.Errorf("OCR_ENGINE_URL is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}
	if c.DetectorConcurrency < 1 || c.DetectorConcurrency > 32 {
		return fmt.Errorf("DETECTOR_CONCURRENCY must be between 1 and 32, got %d", c.DetectorConcurrency)
	}
	if c.MaxFileSize < 1024 || c.MaxFileSize > 10737418240 { // 1KB to 10GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 10GB, got %d", c.MaxFileSize)
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or returns error
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
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

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
