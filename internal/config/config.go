package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port             string
	LogLevel         string
	DatabaseURL      string
	HTTPTimeout      time.Duration
	RetryAttempts    int
	RequestDelay     time.Duration
	MaxConcurrent    int
	BatchSize        int
	QualityThreshold float64
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	timeout, _ := time.ParseDuration(getEnv("HTTP_TIMEOUT", "30s"))
	requestDelay, _ := time.ParseDuration(getEnv("REQUEST_DELAY", "1s"))
	retryAttempts, _ := strconv.Atoi(getEnv("RETRY_ATTEMPTS", "3"))
	maxConcurrent, _ := strconv.Atoi(getEnv("MAX_CONCURRENT", "5"))
	batchSize, _ := strconv.Atoi(getEnv("BATCH_SIZE", "100"))
	qualityThreshold, _ := strconv.ParseFloat(getEnv("QUALITY_THRESHOLD", "0.8"), 64)

	return &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		HTTPTimeout:      timeout,
		RetryAttempts:    retryAttempts,
		RequestDelay:     requestDelay,
		MaxConcurrent:    maxConcurrent,
		BatchSize:        batchSize,
		QualityThreshold: qualityThreshold,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
