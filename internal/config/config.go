package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL string

	FirmsMapKey  string
	FirmsBaseURL string
	AreaBBox     string // default bounding box: lon_min,lat_min,lon_max,lat_max
	RecencyDays  int    // FIRMS lookback, 1-10 days
	FetchTimeout time.Duration

	SyncInterval    time.Duration
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Alert publishing is enabled when brokers are configured.
	KafkaBrokers    []string
	KafkaAlertTopic string
}

// AlertsEnabled reports whether validated fires should be published to Kafka.
func (c *Config) AlertsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is merged in first, without
// overriding variables already exported.
func Load() (*Config, error) {
	_ = godotenv.Load()

	recencyDays, err := parseInt("FIRMS_DAYS", 2)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	syncInterval, err := parseDuration("SYNC_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		FirmsMapKey:     os.Getenv("FIRMS_MAP_KEY"),
		FirmsBaseURL:    envOrDefault("FIRMS_BASE_URL", "https://firms.modaps.eosdis.nasa.gov"),
		AreaBBox:        os.Getenv("FIRMS_AREA_BBOX"),
		RecencyDays:     recencyDays,
		FetchTimeout:    fetchTimeout,
		SyncInterval:    syncInterval,
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertTopic: envOrDefault("KAFKA_ALERT_TOPIC", "validated-fires"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.FirmsMapKey == "" {
		return nil, errors.New("FIRMS_MAP_KEY is required")
	}
	if cfg.RecencyDays < 0 || cfg.RecencyDays > 10 {
		return nil, fmt.Errorf("FIRMS_DAYS must be between 0 and 10, got %d", cfg.RecencyDays)
	}
	if cfg.SyncInterval <= 0 {
		return nil, errors.New("invalid SYNC_INTERVAL")
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, errors.New("invalid SHUTDOWN_TIMEOUT")
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
