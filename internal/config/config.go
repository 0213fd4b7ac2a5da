package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port        string
	Store       string
	DatabaseURL string
	Location    *time.Location
	CatalogPath string

	ServiceToken string
	MetricsUser  string
	MetricsPass  string
	PprofSecret  string

	DispatchWorkers        int
	DispatchQueue          int
	DispatchEnqueueTimeout time.Duration

	DedupTTL  time.Duration
	DedupSize int

	RateLimitRPS   float64
	RateLimitBurst int

	ResetSchedule string

	FCMCredentialsFile string

	LogLevel  string
	LogFormat string
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	cfg := &Config{
		Port:                   getEnv("PORT", "3333"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		CatalogPath:            os.Getenv("CATALOG_PATH"),
		ServiceToken:           os.Getenv("SERVICE_TOKEN"),
		MetricsUser:            os.Getenv("METRICS_USER"),
		MetricsPass:            os.Getenv("METRICS_PASS"),
		PprofSecret:            os.Getenv("PPROF_SECRET"),
		DispatchWorkers:        getEnvInt("DISPATCH_WORKERS", 5),
		DispatchQueue:          getEnvInt("DISPATCH_QUEUE", 100),
		DispatchEnqueueTimeout: getEnvDuration("DISPATCH_ENQUEUE_TIMEOUT", 2*time.Second),
		DedupTTL:               getEnvDuration("DEDUP_TTL", 48*time.Hour),
		DedupSize:              getEnvInt("DEDUP_SIZE", 100000),
		RateLimitRPS:           float64(getEnvInt("RATE_LIMIT_RPS", 5)),
		RateLimitBurst:         getEnvInt("RATE_LIMIT_BURST", 30),
		ResetSchedule:          getEnv("STREAK_RESET_SCHEDULE", "0 0 * * *"),
		FCMCredentialsFile:     getEnv("FCM_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
	}

	cfg.Store = os.Getenv("STORE")
	if cfg.Store == "" {
		if cfg.DatabaseURL != "" {
			cfg.Store = StorePostgres
		} else {
			cfg.Store = StoreMemory
		}
	}
	if cfg.Store != StoreMemory && cfg.Store != StorePostgres {
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}
	if cfg.Store == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.DispatchWorkers < 1 {
		return nil, fmt.Errorf("DISPATCH_WORKERS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid integer %q, using %d", v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid duration %q, using %s", v, fallback)
		return fallback
	}
	return d
}
