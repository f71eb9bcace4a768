package handlers

import (
	"context"
	"fmt"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/alertstate"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/history"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/signal"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/metrics"
)

// mockEngine implements Engine. Set an Fn field to control a method.
type mockEngine struct {
	SubmitSampleFn     func(ctx context.Context, s signal.Sample) error
	CreateRuleFn       func(ctx context.Context, r *rules.Rule) (*rules.Rule, error)
	GetRuleFn          func(ctx context.Context, id string) (*rules.Rule, error)
	ListRulesFn        func(ctx context.Context, filter rules.Filter) ([]*rules.Rule, error)
	UpdateRuleFn       func(ctx context.Context, id string, patch rules.Patch) (*rules.Rule, error)
	ToggleRuleFn       func(ctx context.Context, id string, enabled bool) (*rules.Rule, error)
	DeleteRuleFn       func(ctx context.Context, id string) error
	AcknowledgeFn      func(ctx context.Context, ruleID, scope, user string) (*alertstate.Event, error)
	ListActiveAlertsFn func(filter alertstate.Filter) []alertstate.Event
	ListHistoryFn      func(filter history.Filter, limit int) []history.Record
	ClearHistoryFn     func(ctx context.Context) error
	SetScheduleFn      func(ctx context.Context, s schedule.Schedule) error

	schedule schedule.Schedule
}

var _ Engine = (*mockEngine)(nil)

func (m *mockEngine) SubmitSample(ctx context.Context, s signal.Sample) error {
	if m.SubmitSampleFn != nil {
		return m.SubmitSampleFn(ctx, s)
	}
	return s.Check()
}

func (m *mockEngine) CreateRule(ctx context.Context, r *rules.Rule) (*rules.Rule, error) {
	if m.CreateRuleFn != nil {
		return m.CreateRuleFn(ctx, r)
	}
	if err := rules.Validate(r); err != nil {
		return nil, err
	}
	out := r.Clone()
	out.ID = "rule-1"
	out.Version = 1
	return out, nil
}

func (m *mockEngine) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	if m.GetRuleFn != nil {
		return m.GetRuleFn(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", rules.ErrRuleNotFound, id)
}

func (m *mockEngine) ListRules(ctx context.Context, filter rules.Filter) ([]*rules.Rule, error) {
	if m.ListRulesFn != nil {
		return m.ListRulesFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockEngine) UpdateRule(ctx context.Context, id string, patch rules.Patch) (*rules.Rule, error) {
	if m.UpdateRuleFn != nil {
		return m.UpdateRuleFn(ctx, id, patch)
	}
	return &rules.Rule{ID: id, Version: 2}, nil
}

func (m *mockEngine) ToggleRule(ctx context.Context, id string, enabled bool) (*rules.Rule, error) {
	if m.ToggleRuleFn != nil {
		return m.ToggleRuleFn(ctx, id, enabled)
	}
	return &rules.Rule{ID: id, Enabled: enabled, Version: 2}, nil
}

func (m *mockEngine) DeleteRule(ctx context.Context, id string) error {
	if m.DeleteRuleFn != nil {
		return m.DeleteRuleFn(ctx, id)
	}
	return nil
}

func (m *mockEngine) Acknowledge(ctx context.Context, ruleID, scope, user string) (*alertstate.Event, error) {
	if m.AcknowledgeFn != nil {
		return m.AcknowledgeFn(ctx, ruleID, scope, user)
	}
	return nil, fmt.Errorf("%w: rule %s scope %s", alertstate.ErrNoActiveAlert, ruleID, scope)
}

func (m *mockEngine) ListActiveAlerts(filter alertstate.Filter) []alertstate.Event {
	if m.ListActiveAlertsFn != nil {
		return m.ListActiveAlertsFn(filter)
	}
	return nil
}

func (m *mockEngine) ListHistory(filter history.Filter, limit int) []history.Record {
	if m.ListHistoryFn != nil {
		return m.ListHistoryFn(filter, limit)
	}
	return nil
}

func (m *mockEngine) ClearHistory(ctx context.Context) error {
	if m.ClearHistoryFn != nil {
		return m.ClearHistoryFn(ctx)
	}
	return nil
}

func (m *mockEngine) Schedule() schedule.Schedule {
	return m.schedule
}

func (m *mockEngine) SetSchedule(ctx context.Context, s schedule.Schedule) error {
	if m.SetScheduleFn != nil {
		if err := m.SetScheduleFn(ctx, s); err != nil {
			return err
		}
	} else if err := s.Validate(); err != nil {
		return err
	}
	m.schedule = s
	return nil
}

// mockMetricsReader implements MetricsReader.
type mockMetricsReader struct {
	services map[string]*metrics.ServiceMetrics
	err      error
}

func (m *mockMetricsReader) GetServiceMetrics(ctx context.Context, name string) (*metrics.ServiceMetrics, error) {
	if s, ok := m.services[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no metrics found for service: %s", name)
}

func (m *mockMetricsReader) GetAllServiceMetrics(ctx context.Context) (map[string]*metrics.ServiceMetrics, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]*metrics.ServiceMetrics, len(m.services))
	for k, v := range m.services {
		out[k] = v
	}
	return out, nil
}
