package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Worker      WorkerConfig
	DB          DatabaseConfig
	Logging     LoggingConfig
	Correlation CorrelationConfig
	Merge       MergeConfig
	Evacuation  EvacuationConfig
	Dispatch    DispatchConfig
	RateLimit   RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

// CorrelationConfig bounds the corroborating-report search during credibility
// scoring.
type CorrelationConfig struct {
	RadiusM float64
	Window  time.Duration
}

// MergeConfig bounds disaster merging when a validated report correlates with
// an existing active disaster.
type MergeConfig struct {
	RadiusFloorM float64
	Window       time.Duration
}

type EvacuationConfig struct {
	MaxSearchRadiusM float64
}

type DispatchConfig struct {
	AckTimeout    time.Duration
	SweepInterval time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 100),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/coordination.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Correlation: CorrelationConfig{
			RadiusM: getEnvFloat("CORRELATION_RADIUS_M", 500),
			Window:  getEnvDuration("CORRELATION_WINDOW", 6*time.Hour),
		},
		Merge: MergeConfig{
			RadiusFloorM: getEnvFloat("MERGE_RADIUS_FLOOR_M", 2000),
			Window:       getEnvDuration("MERGE_WINDOW", 24*time.Hour),
		},
		Evacuation: EvacuationConfig{
			MaxSearchRadiusM: getEnvFloat("EVAC_MAX_SEARCH_RADIUS_M", 50000),
		},
		Dispatch: DispatchConfig{
			AckTimeout:    getEnvDuration("DISPATCH_ACK_TIMEOUT", 15*time.Minute),
			SweepInterval: getEnvDuration("DISPATCH_SWEEP_INTERVAL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 50),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 100),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}

	if c.Correlation.RadiusM <= 0 {
		return fmt.Errorf("correlation radius must be positive")
	}
	if c.Merge.RadiusFloorM <= 0 {
		return fmt.Errorf("merge radius floor must be positive")
	}
	if c.Evacuation.MaxSearchRadiusM <= 0 {
		return fmt.Errorf("evacuation search radius must be positive")
	}

	if c.Dispatch.AckTimeout < time.Minute {
		return fmt.Errorf("dispatch ack timeout must be at least 1 minute")
	}
	if c.Dispatch.SweepInterval < time.Second {
		return fmt.Errorf("dispatch sweep interval must be at least 1 second")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
