// Package shared holds small helpers used by the alert-engine entrypoint.
package shared

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// GetEnvOrDefault returns the environment variable value or defaultValue if unset.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt parses an integer variable. Unparseable values fall back to
// defaultValue with a warning.
func GetEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Ignoring invalid integer environment variable", "key", key, "value", value)
		return defaultValue
	}
	return n
}

// GetEnvDuration parses a duration variable such as "30s".
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Ignoring invalid duration environment variable", "key", key, "value", value)
		return defaultValue
	}
	return d
}

// GetEnvBool parses a boolean variable.
func GetEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Ignoring invalid boolean environment variable", "key", key, "value", value)
		return defaultValue
	}
	return b
}

// MaskDSN hides the password of a postgres:// DSN for logging. DSNs that do
// not parse as URLs are masked whole.
func MaskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// ConnectRedis creates a client and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}
