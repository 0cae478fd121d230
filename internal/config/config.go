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
	Database  DatabaseConfig
	Events    EventsConfig
	API       APIConfig
	Cache     CacheConfig
	Scheduler SchedulerConfig
	Worker    WorkerConfig
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// EventsConfig holds the lifecycle event bus configuration (Redis)
type EventsConfig struct {
	RedisURL  string
	QueueName string
}

// APIConfig holds API server configuration
type APIConfig struct {
	Port int
}

// CacheConfig holds the read-cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// SchedulerConfig holds the activation scheduler configuration
type SchedulerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// WorkerConfig holds the execution dispatcher configuration
type WorkerConfig struct {
	Concurrency int
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	apiPort, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	cacheTTL, err := time.ParseDuration(getEnv("CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	pollInterval, err := time.ParseDuration(getEnv("SCHEDULER_POLL_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_POLL_INTERVAL: %w", err)
	}

	batchSize, err := strconv.Atoi(getEnv("SCHEDULER_BATCH_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_BATCH_SIZE: %w", err)
	}

	workerConcurrency, err := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "campaign_console"),
			Password: getEnv("DB_PASSWORD", "campaign_console"),
			DBName:   getEnv("DB_NAME", "campaign_console"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Events: EventsConfig{
			RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379/0"),
			QueueName: getEnv("EVENT_QUEUE_NAME", "campaign_lifecycle_events"),
		},
		API: APIConfig{
			Port: apiPort,
		},
		Cache: CacheConfig{
			TTL: cacheTTL,
		},
		Scheduler: SchedulerConfig{
			PollInterval: pollInterval,
			BatchSize:    batchSize,
		},
		Worker: WorkerConfig{
			Concurrency: workerConcurrency,
		},
	}, nil
}

// DSN returns the database connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
