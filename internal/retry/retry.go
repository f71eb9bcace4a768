// Package retry runs channel deliveries with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"
)

// Policy bounds the number of attempts and the wait between them.
type Policy struct {
	MaxAttempts    int           // total attempts including the first; < 1 means 1
	InitialBackoff time.Duration // wait before the second attempt
	MaxBackoff     time.Duration // cap on any single wait
	Multiplier     float64       // growth per attempt
	Jitter         float64       // fraction of the backoff randomized in both directions
}

// DefaultPolicy is used for every channel unless overridden.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.25,
	}
}

// StatusError is returned by HTTP-based senders for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether err looks transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests || se.Code == http.StatusRequestTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"not verified", "invalid", "malformed", "recipient is required"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	for _, s := range []string{"timeout", "connection refused", "connection reset", "temporary", "rate limit", "throttl", "too many requests", "try again"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Do calls fn until it succeeds, fails permanently, runs out of attempts, or
// ctx is cancelled. It returns the number of attempts made.
func Do(ctx context.Context, p Policy, operation string, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("Delivery succeeded after retry",
					"operation", operation,
					"attempt", attempt,
				)
			}
			return attempt, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			slog.Debug("Error is not retryable, failing immediately",
				"operation", operation,
				"error", err,
			)
			return attempt, err
		}
		if attempt == maxAttempts {
			slog.Warn("Max attempts exceeded",
				"operation", operation,
				"attempts", attempt,
				"error", err,
			)
			return attempt, err
		}

		wait := p.Backoff(attempt)
		slog.Warn("Delivery failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return maxAttempts, lastErr
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	b := float64(p.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if p.MaxBackoff > 0 && b > float64(p.MaxBackoff) {
		b = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		b += b * p.Jitter * (rand.Float64()*2 - 1)
	}
	if b < 0 {
		b = 0
	}
	return time.Duration(b)
}
