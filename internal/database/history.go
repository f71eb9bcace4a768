package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/lib/pq"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/history"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// HistoryStore persists dispatch records. It is the durable sink behind history.Log.
type HistoryStore struct {
	db *DB
}

var (
	_ history.Sink   = (*HistoryStore)(nil)
	_ history.Pruner = (*HistoryStore)(nil)
)

// NewHistoryStore creates a history store on db.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Save inserts a record or overwrites the mutable fields of an existing one.
func (s *HistoryStore) Save(ctx context.Context, rec history.Record) error {
	delivery, err := json.Marshal(rec.Delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}
	if rec.Delivery == nil {
		delivery = []byte("{}")
	}

	query := `
		INSERT INTO alert_history (record_id, kind, rule_id, rule_name, metric, scope, value, text, threshold, unit,
			severity, channels, delivery, occurrences, acknowledged, acknowledged_by, created_at, last_occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (record_id) DO UPDATE
		SET value = EXCLUDED.value,
		    text = EXCLUDED.text,
		    delivery = EXCLUDED.delivery,
		    occurrences = EXCLUDED.occurrences,
		    acknowledged = EXCLUDED.acknowledged,
		    acknowledged_by = EXCLUDED.acknowledged_by,
		    last_occurred_at = EXCLUDED.last_occurred_at
	`
	_, err = s.db.conn.ExecContext(ctx, query,
		rec.ID,
		string(rec.Kind),
		rec.RuleID,
		rec.RuleName,
		rec.Metric,
		rec.Scope,
		nullFloat(rec.Value),
		rec.Text,
		nullFloat(rec.Threshold),
		rec.Unit,
		string(rec.Severity),
		pq.Array(channelStrings(rec.Channels)),
		delivery,
		rec.Occurrences,
		rec.Acknowledged,
		rec.AcknowledgedBy,
		rec.Timestamp,
		rec.LastOccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save history record: %w", err)
	}
	return nil
}

// Clear deletes every record.
func (s *HistoryStore) Clear(ctx context.Context) error {
	if _, err := s.db.conn.ExecContext(ctx, `DELETE FROM alert_history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Prune deletes everything but the newest keep records.
func (s *HistoryStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	query := `
		DELETE FROM alert_history
		WHERE record_id IN (
			SELECT record_id FROM alert_history
			ORDER BY created_at DESC, record_id DESC
			OFFSET $1
		)
	`
	res, err := s.db.conn.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned history rows: %w", err)
	}
	return n, nil
}

// LoadRecent returns the newest limit records, oldest first, ready for history.Log.Load.
func (s *HistoryStore) LoadRecent(ctx context.Context, limit int) ([]history.Record, error) {
	query := `
		SELECT record_id, kind, rule_id, rule_name, metric, scope, value, text, threshold, unit,
		       severity, channels, delivery, occurrences, acknowledged, acknowledged_by, created_at, last_occurred_at
		FROM alert_history
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var out []history.Record
	for rows.Next() {
		var (
			rec       history.Record
			value     sql.NullFloat64
			threshold sql.NullFloat64
			channels  pq.StringArray
			delivery  []byte
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Kind,
			&rec.RuleID,
			&rec.RuleName,
			&rec.Metric,
			&rec.Scope,
			&value,
			&rec.Text,
			&threshold,
			&rec.Unit,
			&rec.Severity,
			&channels,
			&delivery,
			&rec.Occurrences,
			&rec.Acknowledged,
			&rec.AcknowledgedBy,
			&rec.Timestamp,
			&rec.LastOccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		if value.Valid {
			v := value.Float64
			rec.Value = &v
		}
		if threshold.Valid {
			v := threshold.Float64
			rec.Threshold = &v
		}
		for _, c := range channels {
			rec.Channels = append(rec.Channels, rules.Channel(c))
		}
		if len(delivery) > 0 {
			if err := json.Unmarshal(delivery, &rec.Delivery); err != nil {
				return nil, fmt.Errorf("failed to unmarshal delivery for %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}
