package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Batch    BatchConfig
	Upload   UploadConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DSN renders the MySQL connection string. Timestamps are stored in UTC.
// clientFoundRows makes RowsAffected report matched rows rather than changed
// rows, so updates that change nothing are not mistaken for missing rows.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC&clientFoundRows=true",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// BatchConfig holds batch pipeline tuning
type BatchConfig struct {
	WorkerIntervalSeconds    int // BATCH_WORKER_INTERVAL_SECONDS: poll interval for unprocessed batches
	ChunkSize                int // BATCH_CHUNK_SIZE: rows applied per chunk to bound memory
	StaleProcessingMinutes   int // BATCH_STALE_PROCESSING_MINUTES: PROCESSING older than this is failed by recovery
	JobWorkerIntervalSeconds int // REALLOCATION_WORKER_INTERVAL_SECONDS: poll interval for pending jobs
}

// UploadConfig holds upload storage configuration
type UploadConfig struct {
	BasePath string // UPLOAD_BASE_PATH: directory for uploaded batch files
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getEnv("DB_NAME", "caseflow"),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("PORT", getEnv("SERVER_PORT", "8080")),
		},
		Batch: BatchConfig{
			WorkerIntervalSeconds:    getEnvInt("BATCH_WORKER_INTERVAL_SECONDS", 10),
			ChunkSize:                getEnvInt("BATCH_CHUNK_SIZE", 500),
			StaleProcessingMinutes:   getEnvInt("BATCH_STALE_PROCESSING_MINUTES", 30),
			JobWorkerIntervalSeconds: getEnvInt("REALLOCATION_WORKER_INTERVAL_SECONDS", 10),
		},
		Upload: UploadConfig{
			BasePath: getEnv("UPLOAD_BASE_PATH", "uploads"),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
