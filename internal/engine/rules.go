package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/alertstate"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/events"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// CreateRule stores a new rule.
func (e *Engine) CreateRule(ctx context.Context, r *rules.Rule) (*rules.Rule, error) {
	created, err := e.store.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	slog.Info("Rule created",
		"rule_id", created.ID,
		"metric", created.Metric,
		"condition", created.Condition,
		"severity", created.Severity,
	)
	e.ruleChanged(ctx, created, events.ActionCreated)
	return created, nil
}

// GetRule returns one rule.
func (e *Engine) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	return e.store.Get(ctx, id)
}

// ListRules returns the rules matching filter.
func (e *Engine) ListRules(ctx context.Context, filter rules.Filter) ([]*rules.Rule, error) {
	return e.store.List(ctx, filter)
}

// UpdateRule patches a rule. Disabling it resolves its active events; a scope
// or metric change resolves the events the rule no longer covers.
func (e *Engine) UpdateRule(ctx context.Context, id string, patch rules.Patch) (*rules.Rule, error) {
	updated, err := e.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	at := e.now().UTC()

	action := events.ActionUpdated
	if !updated.Enabled {
		action = events.ActionDisabled
		e.retire(ctx, id, at)
	} else {
		e.narrow(ctx, updated, at)
	}

	slog.Info("Rule updated", "rule_id", id, "version", updated.Version, "enabled", updated.Enabled)
	e.ruleChanged(ctx, updated, action)
	return updated, nil
}

// ToggleRule enables or disables a rule.
func (e *Engine) ToggleRule(ctx context.Context, id string, enabled bool) (*rules.Rule, error) {
	return e.UpdateRule(ctx, id, rules.Patch{Enabled: &enabled})
}

// DeleteRule removes a rule, resolves its active events and cancels its
// pending deliveries.
func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	existing, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	e.retire(ctx, id, e.now().UTC())

	slog.Info("Rule deleted", "rule_id", id)
	e.ruleChanged(ctx, existing, events.ActionDeleted)
	return nil
}

// retire resolves every active event of a rule and cancels its deliveries.
func (e *Engine) retire(ctx context.Context, ruleID string, at time.Time) {
	e.coordinator.CancelRule(ruleID)
	for _, ev := range e.machine.ResolveRule(ruleID, at) {
		e.resolved(ctx, ev)
	}
}

// narrow resolves the events of rule that fall outside its metric or scope.
func (e *Engine) narrow(ctx context.Context, rule *rules.Rule, at time.Time) {
	for _, ev := range e.machine.Active(alertstate.Filter{RuleID: rule.ID}) {
		if ev.Metric != rule.Metric {
			e.retire(ctx, rule.ID, at)
			return
		}
	}
	for _, ev := range e.machine.ResolveScopes(rule.ID, at, rule.AppliesTo) {
		e.resolved(ctx, ev)
	}
}

func (e *Engine) ruleChanged(ctx context.Context, r *rules.Rule, action string) {
	rc := events.NewRuleChanged(r, action, e.now())
	if err := e.publisher.PublishRuleChanged(ctx, rc); err != nil {
		e.metrics.RecordError()
		slog.Error("Failed to publish rule.changed event",
			"rule_id", r.ID,
			"action", action,
			"error", err,
		)
		return
	}
	e.metrics.RecordPublished()
}
