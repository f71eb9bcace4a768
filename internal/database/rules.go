package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

const ruleColumns = `rule_id, name, metric, scope, condition, threshold, threshold_text, unit,
		severity, channels, recipients, enabled, version, created_at, updated_at`

// RuleStore is the Postgres implementation of rules.Store.
type RuleStore struct {
	db *DB
}

var _ rules.Store = (*RuleStore)(nil)

// NewRuleStore creates a rule store on db.
func NewRuleStore(db *DB) *RuleStore {
	return &RuleStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*rules.Rule, error) {
	var (
		r          rules.Rule
		threshold  sql.NullFloat64
		scope      pq.StringArray
		channels   pq.StringArray
		recipients []byte
	)
	if err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Metric,
		&scope,
		&r.Condition,
		&threshold,
		&r.ThresholdText,
		&r.Unit,
		&r.Severity,
		&channels,
		&recipients,
		&r.Enabled,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if threshold.Valid {
		v := threshold.Float64
		r.Threshold = &v
	}
	r.Scope = []string(scope)
	r.Channels = make([]rules.Channel, len(channels))
	for i, c := range channels {
		r.Channels[i] = rules.Channel(c)
	}
	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &r.Recipients); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipients: %w", err)
		}
	}
	return &r, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func channelStrings(channels []rules.Channel) []string {
	out := make([]string, len(channels))
	for i, c := range channels {
		out[i] = string(c)
	}
	return out
}

func marshalRecipients(m map[rules.Channel]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipients: %w", err)
	}
	return b, nil
}

// Create validates and inserts a rule. An empty ID is replaced with a UUID.
func (s *RuleStore) Create(ctx context.Context, rule *rules.Rule) (*rules.Rule, error) {
	if err := rules.Validate(rule); err != nil {
		return nil, err
	}
	id := rule.ID
	if id == "" {
		id = uuid.NewString()
	}
	recipients, err := marshalRecipients(rule.Recipients)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO alert_rules (rule_id, name, metric, scope, condition, threshold, threshold_text, unit,
			severity, channels, recipients, enabled, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, NOW(), NOW())
		RETURNING ` + ruleColumns
	created, err := scanRule(s.db.conn.QueryRowContext(ctx, query,
		id,
		rule.Name,
		rule.Metric,
		pq.Array(rule.Scope),
		string(rule.Condition),
		nullFloat(rule.Threshold),
		rule.ThresholdText,
		rule.Unit,
		string(rule.Severity),
		pq.Array(channelStrings(rule.Channels)),
		recipients,
		rule.Enabled,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("rule already exists: %s", id)
		}
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return created, nil
}

// Get retrieves a rule by ID.
func (s *RuleStore) Get(ctx context.Context, id string) (*rules.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE rule_id = $1`
	r, err := scanRule(s.db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", rules.ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return r, nil
}

// Update applies patch with optimistic locking on the stored version.
func (s *RuleStore) Update(ctx context.Context, id string, patch rules.Patch) (*rules.Rule, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := current.Version
	if patch.Version != nil {
		if *patch.Version != current.Version {
			return nil, fmt.Errorf("%w: expected version %d, have %d", rules.ErrVersionMismatch, *patch.Version, current.Version)
		}
		expected = *patch.Version
	}

	next := patch.Apply(current)
	if err := rules.Validate(next); err != nil {
		return nil, err
	}
	recipients, err := marshalRecipients(next.Recipients)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE alert_rules
		SET name = $2,
		    metric = $3,
		    scope = $4,
		    condition = $5,
		    threshold = $6,
		    threshold_text = $7,
		    unit = $8,
		    severity = $9,
		    channels = $10,
		    recipients = $11,
		    enabled = $12,
		    version = version + 1,
		    updated_at = NOW()
		WHERE rule_id = $1 AND version = $13
		RETURNING ` + ruleColumns
	updated, err := scanRule(s.db.conn.QueryRowContext(ctx, query,
		id,
		next.Name,
		next.Metric,
		pq.Array(next.Scope),
		string(next.Condition),
		nullFloat(next.Threshold),
		next.ThresholdText,
		next.Unit,
		string(next.Severity),
		pq.Array(channelStrings(next.Channels)),
		recipients,
		next.Enabled,
		expected,
	))
	if err == sql.ErrNoRows {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM alert_rules WHERE rule_id = $1)`
		if err := s.db.conn.QueryRowContext(ctx, checkQuery, id).Scan(&exists); err == nil && exists {
			return nil, fmt.Errorf("%w: expected version %d", rules.ErrVersionMismatch, expected)
		}
		return nil, fmt.Errorf("%w: %s", rules.ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return updated, nil
}

// Delete deletes a rule by ID.
func (s *RuleStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.conn.ExecContext(ctx, `DELETE FROM alert_rules WHERE rule_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", rules.ErrRuleNotFound, id)
	}
	return nil
}

// List returns the rules matching filter, oldest first.
func (s *RuleStore) List(ctx context.Context, filter rules.Filter) ([]*rules.Rule, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Metric != "" {
		conds = append(conds, "metric = "+arg(filter.Metric))
	}
	if filter.Scope != "" {
		conds = append(conds, fmt.Sprintf("(%s = ANY(scope) OR '*' = ANY(scope))", arg(filter.Scope)))
	}
	if filter.Severity != "" {
		conds = append(conds, "severity = "+arg(string(filter.Severity)))
	}
	if filter.Enabled != nil {
		conds = append(conds, "enabled = "+arg(*filter.Enabled))
	}

	query := `SELECT ` + ruleColumns + ` FROM alert_rules`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at, rule_id`

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []*rules.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
