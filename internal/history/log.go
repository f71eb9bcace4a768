package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// ErrRecordNotFound is returned when a record id is not in the log.
var ErrRecordNotFound = errors.New("history record not found")

// Sink persists history writes. Writes reach it in the order the log made
// them, from a single goroutine. Failures are logged and never fail the log.
type Sink interface {
	Save(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}

// Log is a bounded, newest-wins ring buffer of records.
type Log struct {
	mu    sync.RWMutex
	buf   []Record
	head  int // index of the oldest record
	size  int
	index map[string]int // record id -> buffer slot

	writer     *writer
	closed     bool
	evictions  int
	pruneEvery int
	now        func() time.Time
}

// NewLog creates a log that retains at most capacity records.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf:        make([]Record, capacity),
		index:      make(map[string]int, capacity),
		pruneEvery: max(capacity/10, 1),
		now:        time.Now,
	}
}

// WithSink starts writing through to s in the background. Sinks that
// implement Pruner are trimmed to the retention cap as records are evicted.
// Call Close to drain pending writes.
func (l *Log) WithSink(s Sink) *Log {
	l.writer = newWriter(s, DefaultWriteQueue)
	return l
}

// enqueue must be called with mu held so the queue follows mutation order.
func (l *Log) enqueue(op writeOp) bool {
	if l.writer == nil || l.closed {
		return false
	}
	l.writer.ops <- op
	return true
}

// Flush blocks until every write queued so far has reached the sink.
func (l *Log) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	l.mu.Lock()
	queued := l.enqueue(writeOp{kind: opBarrier, done: done})
	l.mu.Unlock()
	if !queued {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending writes and stops the sink writer. Later mutations stay
// in memory only.
func (l *Log) Close() {
	l.mu.Lock()
	if l.writer == nil || l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.writer.ops)
	l.mu.Unlock()
	<-l.writer.stopped
}

// Cap returns the retention cap.
func (l *Log) Cap() int { return len(l.buf) }

// Len returns the number of retained records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Append adds rec, evicting the oldest record when full. Missing ids and
// timestamps are filled in.
func (l *Log) Append(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now().UTC()
	}
	if rec.LastOccurredAt.IsZero() {
		rec.LastOccurredAt = rec.Timestamp
	}
	if rec.Occurrences == 0 {
		rec.Occurrences = 1
	}
	rec = rec.Clone()

	l.mu.Lock()
	evicted := l.put(rec)
	l.enqueue(writeOp{kind: opSave, rec: rec.Clone()})
	if evicted {
		l.evictions++
		if l.evictions >= l.pruneEvery {
			l.evictions = 0
			l.enqueue(writeOp{kind: opPrune, keep: len(l.buf)})
		}
	}
	l.mu.Unlock()

	return rec.Clone()
}

// put must be called with mu held. It reports whether a record was evicted.
func (l *Log) put(rec Record) bool {
	capacity := len(l.buf)
	var slot int
	evicted := false
	if l.size < capacity {
		slot = (l.head + l.size) % capacity
		l.size++
	} else {
		slot = l.head
		delete(l.index, l.buf[slot].ID)
		l.head = (l.head + 1) % capacity
		evicted = true
	}
	l.buf[slot] = rec
	l.index[rec.ID] = slot
	return evicted
}

// Load restores records, oldest first, without writing them to the sink.
func (l *Log) Load(records []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range records {
		if _, dup := l.index[r.ID]; dup {
			continue
		}
		l.put(r.Clone())
	}
}

// List returns up to limit records matching filter, newest first. limit <= 0
// returns every match.
func (l *Log) List(filter Filter, limit int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Record
	for i := l.size - 1; i >= 0; i-- {
		r := &l.buf[(l.head+i)%len(l.buf)]
		if !filter.Matches(r) {
			continue
		}
		out = append(out, r.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Get returns one record by id.
func (l *Log) Get(id string) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	slot, ok := l.index[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return l.buf[slot].Clone(), nil
}

// Clear drops every record and waits for the sink to be cleared.
func (l *Log) Clear(ctx context.Context) error {
	done := make(chan error, 1)
	l.mu.Lock()
	for i := range l.buf {
		l.buf[i] = Record{}
	}
	l.head, l.size = 0, 0
	l.evictions = 0
	l.index = make(map[string]int, len(l.buf))
	queued := l.enqueue(writeOp{kind: opClear, done: done})
	l.mu.Unlock()

	if !queued {
		return nil
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("failed to clear history store: %w", ctx.Err())
	}
}

// IncrementOccurrences merges another trigger into an existing record. The
// record takes the latest reading.
func (l *Log) IncrementOccurrences(id string, value *float64, text string, at time.Time) (Record, error) {
	if value != nil {
		v := *value
		value = &v
	}
	return l.update(id, func(r *Record) {
		r.Occurrences++
		r.Value = value
		r.Text = text
		r.LastOccurredAt = at
	})
}

// SetDelivery records the outcome of one channel call.
func (l *Log) SetDelivery(id string, ch rules.Channel, d Delivery) (Record, error) {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = l.now().UTC()
	}
	return l.update(id, func(r *Record) {
		if r.Delivery == nil {
			r.Delivery = make(map[rules.Channel]Delivery)
		}
		r.Delivery[ch] = d
	})
}

// MarkAcknowledged flags the notified records of (rule, scope) as acknowledged.
func (l *Log) MarkAcknowledged(ruleID, scope, user string) int {
	l.mu.Lock()
	changed := 0
	for i := 0; i < l.size; i++ {
		r := &l.buf[(l.head+i)%len(l.buf)]
		if r.RuleID != ruleID || r.Kind != KindNotified || r.Acknowledged {
			continue
		}
		if scope != "" && r.Scope != scope {
			continue
		}
		r.Acknowledged = true
		r.AcknowledgedBy = user
		l.enqueue(writeOp{kind: opSave, rec: r.Clone()})
		changed++
	}
	l.mu.Unlock()
	return changed
}

func (l *Log) update(id string, fn func(*Record)) (Record, error) {
	l.mu.Lock()
	slot, ok := l.index[id]
	if !ok {
		l.mu.Unlock()
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	fn(&l.buf[slot])
	rec := l.buf[slot].Clone()
	l.enqueue(writeOp{kind: opSave, rec: rec.Clone()})
	l.mu.Unlock()

	return rec, nil
}
