package handlers

import (
	"context"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/alertstate"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/history"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/signal"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/metrics"
)

// Engine is the part of *engine.Engine the API drives.
type Engine interface {
	SubmitSample(ctx context.Context, s signal.Sample) error

	CreateRule(ctx context.Context, r *rules.Rule) (*rules.Rule, error)
	GetRule(ctx context.Context, id string) (*rules.Rule, error)
	ListRules(ctx context.Context, filter rules.Filter) ([]*rules.Rule, error)
	UpdateRule(ctx context.Context, id string, patch rules.Patch) (*rules.Rule, error)
	ToggleRule(ctx context.Context, id string, enabled bool) (*rules.Rule, error)
	DeleteRule(ctx context.Context, id string) error

	Acknowledge(ctx context.Context, ruleID, scope, user string) (*alertstate.Event, error)
	ListActiveAlerts(filter alertstate.Filter) []alertstate.Event

	ListHistory(filter history.Filter, limit int) []history.Record
	ClearHistory(ctx context.Context) error

	Schedule() schedule.Schedule
	SetSchedule(ctx context.Context, s schedule.Schedule) error
}

// MetricsReader reads service snapshots. *metrics.Reader implements it.
type MetricsReader interface {
	GetServiceMetrics(ctx context.Context, serviceName string) (*metrics.ServiceMetrics, error)
	GetAllServiceMetrics(ctx context.Context) (map[string]*metrics.ServiceMetrics, error)
}

var _ MetricsReader = (*metrics.Reader)(nil)
