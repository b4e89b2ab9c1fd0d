package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Dispatch DispatchConfig
	Notify   NotifyConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DispatchConfig struct {
	FallbackLatency  time.Duration
	SignalInterval   time.Duration
	SignalChance     float64
	DefaultLatitude  float64
	DefaultLongitude float64
}

type NotifyConfig struct {
	WebhookURL string
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Dispatch: DispatchConfig{
			FallbackLatency:  getEnvDuration("FALLBACK_LATENCY", 1500*time.Millisecond),
			SignalInterval:   getEnvDuration("MESH_SIGNAL_INTERVAL", 30*time.Second),
			SignalChance:     getEnvFloat("MESH_SIGNAL_CHANCE", 0.1),
			DefaultLatitude:  getEnvFloat("DEFAULT_LATITUDE", 34.0522),
			DefaultLongitude: getEnvFloat("DEFAULT_LONGITUDE", -118.2437),
		},
		Notify: NotifyConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/relief-coordination.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
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

	if c.Dispatch.SignalChance <= 0 || c.Dispatch.SignalChance > 1 {
		return fmt.Errorf("mesh signal chance must be in (0, 1]: %f", c.Dispatch.SignalChance)
	}
	if c.Dispatch.SignalInterval < time.Second {
		return fmt.Errorf("mesh signal interval must be at least 1 second")
	}
	if c.Dispatch.FallbackLatency <= 0 {
		return fmt.Errorf("fallback latency must be positive")
	}
	if c.Dispatch.DefaultLatitude < -90 || c.Dispatch.DefaultLatitude > 90 {
		return fmt.Errorf("invalid default latitude: %f", c.Dispatch.DefaultLatitude)
	}
	if c.Dispatch.DefaultLongitude < -180 || c.Dispatch.DefaultLongitude > 180 {
		return fmt.Errorf("invalid default longitude: %f", c.Dispatch.DefaultLongitude)
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
