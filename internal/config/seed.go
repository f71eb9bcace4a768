package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
)

// Seed is the optional YAML file of rules and a schedule loaded at startup.
type Seed struct {
	Rules    []*rules.Rule      `yaml:"rules"`
	Schedule *schedule.Schedule `yaml:"schedule"`
}

// RuleCreator is the part of the engine the seed writes to.
type RuleCreator interface {
	GetRule(ctx context.Context, id string) (*rules.Rule, error)
	CreateRule(ctx context.Context, r *rules.Rule) (*rules.Rule, error)
}

// LoadSeed reads and checks a seed file. Every seeded rule needs an id so
// restarts do not create duplicates.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	seen := make(map[string]bool, len(seed.Rules))
	for i, r := range seed.Rules {
		if r == nil || r.ID == "" {
			return nil, fmt.Errorf("rules[%d]: id cannot be empty", i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("rules[%d]: duplicate id %s", i, r.ID)
		}
		seen[r.ID] = true
		if err := rules.Validate(r); err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
	}
	if seed.Schedule != nil {
		if seed.Schedule.GroupInterval == 0 {
			seed.Schedule.GroupInterval = schedule.Duration(schedule.DefaultGroupInterval)
		}
		if err := seed.Schedule.Validate(); err != nil {
			return nil, fmt.Errorf("schedule: %w", err)
		}
	}
	return &seed, nil
}

// ApplyRules creates the seeded rules that do not exist yet and returns how
// many were created.
func (s *Seed) ApplyRules(ctx context.Context, target RuleCreator) (int, error) {
	created := 0
	for _, r := range s.Rules {
		_, err := target.GetRule(ctx, r.ID)
		if err == nil {
			slog.Debug("Seed rule already exists", "rule_id", r.ID)
			continue
		}
		if !errors.Is(err, rules.ErrRuleNotFound) {
			return created, fmt.Errorf("failed to check seed rule %s: %w", r.ID, err)
		}
		if _, err := target.CreateRule(ctx, r); err != nil {
			return created, fmt.Errorf("failed to create seed rule %s: %w", r.ID, err)
		}
		created++
	}
	return created, nil
}
