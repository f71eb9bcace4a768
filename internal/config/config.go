// Package config holds the alert-engine configuration and its seed file.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds all alert-engine settings.
type Config struct {
	HTTPPort string

	PostgresDSN     string
	DisablePostgres bool

	RedisAddr string
	RedisDB   int

	KafkaBrokers     string
	SamplesTopic     string
	RuleChangedTopic string
	LifecycleTopic   string
	ConsumerGroupID  string
	Workers          int
	DisableKafka     bool

	HistoryCap   int
	TickInterval time.Duration
	SeedFile     string

	LogLevel string
	LogFile  string
}

// Validate checks the required fields. Postgres and Kafka settings are only
// required when those backends are enabled.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if !c.DisablePostgres && c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if !c.DisableKafka {
		if c.KafkaBrokers == "" {
			return fmt.Errorf("kafka-brokers cannot be empty")
		}
		if c.SamplesTopic == "" {
			return fmt.Errorf("samples-topic cannot be empty")
		}
		if c.RuleChangedTopic == "" {
			return fmt.Errorf("rule-changed-topic cannot be empty")
		}
		if c.LifecycleTopic == "" {
			return fmt.Errorf("lifecycle-topic cannot be empty")
		}
		if c.ConsumerGroupID == "" {
			return fmt.Errorf("consumer-group-id cannot be empty")
		}
		if c.Workers < 1 {
			return fmt.Errorf("workers must be at least 1")
		}
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("redis-db cannot be negative")
	}
	if c.HistoryCap < 1 {
		return fmt.Errorf("history-cap must be at least 1")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick-interval must be positive")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels. Empty means info.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log-level must be one of debug, info, warn, error")
	}
}
