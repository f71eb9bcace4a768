// Package snapshot keeps the notification schedule and the last sample per
// (metric, scope) in Redis so the engine can resume after a restart.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/redis/go-redis/v9"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/signal"
)

const (
	// ScheduleKey is the Redis key holding the schedule JSON.
	ScheduleKey = "alerting:schedule"
	// ScheduleVersionKey is incremented on every schedule write.
	ScheduleVersionKey = "alerting:schedule:version"
	// LastValuesKey is the hash of last samples, keyed by metric|scope.
	LastValuesKey = "alerting:last_values"
)

// Store reads and writes engine state in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a snapshot store with the given Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// LoadSchedule returns the saved schedule, or nil if none was saved.
func (s *Store) LoadSchedule(ctx context.Context) (*schedule.Schedule, error) {
	data, err := s.client.Get(ctx, ScheduleKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule from Redis: %w", err)
	}

	var sched schedule.Schedule
	if err := json.Unmarshal(data, &sched); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	return &sched, nil
}

// SaveSchedule writes the schedule and bumps its version in one pipeline.
func (s *Store) SaveSchedule(ctx context.Context, sched schedule.Schedule) error {
	data, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, ScheduleKey, data, 0)
	version := pipe.Incr(ctx, ScheduleVersionKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write schedule to Redis: %w", err)
	}

	slog.Info("Schedule written to Redis", "version", version.Val())
	return nil
}

// ScheduleVersion returns how many times the schedule has been written, or 0.
func (s *Store) ScheduleVersion(ctx context.Context) (int64, error) {
	version, err := s.client.Get(ctx, ScheduleVersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get schedule version from Redis: %w", err)
	}
	return version, nil
}

func sampleField(metric, scope string) string {
	return metric + "|" + scope
}

// SaveSamples records each sample as the last value for its (metric, scope)
// in a single HSET.
func (s *Store) SaveSamples(ctx context.Context, samples []signal.Sample) error {
	fields := make(map[string]any, len(samples))
	for _, sample := range samples {
		// text-only samples carry no trend state
		if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
			continue
		}
		data, err := json.Marshal(sample)
		if err != nil {
			return fmt.Errorf("failed to marshal sample: %w", err)
		}
		fields[sampleField(sample.Metric, sample.Scope)] = data
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, LastValuesKey, fields).Err(); err != nil {
		return fmt.Errorf("failed to write last values to Redis: %w", err)
	}
	return nil
}

// LoadSamples returns every saved last value. Entries that fail to decode are skipped.
func (s *Store) LoadSamples(ctx context.Context) ([]signal.Sample, error) {
	entries, err := s.client.HGetAll(ctx, LastValuesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read last values from Redis: %w", err)
	}

	out := make([]signal.Sample, 0, len(entries))
	for field, raw := range entries {
		var sample signal.Sample
		if err := json.Unmarshal([]byte(raw), &sample); err != nil {
			slog.Warn("Skipping undecodable last value", "field", field, "error", err)
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

// ClearSamples drops every saved last value.
func (s *Store) ClearSamples(ctx context.Context) error {
	if err := s.client.Del(ctx, LastValuesKey).Err(); err != nil {
		return fmt.Errorf("failed to clear last values: %w", err)
	}
	return nil
}
