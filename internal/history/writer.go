package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultWriteQueue bounds the writes waiting for the sink. Mutations
	// block once it is full.
	DefaultWriteQueue = 4096
	sinkTimeout       = 5 * time.Second
)

// Pruner is implemented by sinks that can drop rows the log has evicted.
type Pruner interface {
	// Prune keeps the newest keep records and returns how many were deleted.
	Prune(ctx context.Context, keep int) (int64, error)
}

type opKind int

const (
	opSave opKind = iota
	opClear
	opPrune
	opBarrier
)

type writeOp struct {
	kind opKind
	rec  Record
	keep int
	done chan error
}

// writer applies sink writes one at a time in the order the log made them.
type writer struct {
	sink    Sink
	ops     chan writeOp
	stopped chan struct{}
}

func newWriter(sink Sink, depth int) *writer {
	w := &writer{
		sink:    sink,
		ops:     make(chan writeOp, depth),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writer) run() {
	defer close(w.stopped)
	for op := range w.ops {
		err := w.apply(op)
		if op.done != nil {
			op.done <- err
		}
	}
}

func (w *writer) apply(op writeOp) error {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	switch op.kind {
	case opSave:
		if err := w.sink.Save(ctx, op.rec); err != nil {
			slog.Error("Failed to persist history record",
				"record_id", op.rec.ID,
				"rule_id", op.rec.RuleID,
				"error", err,
			)
			return err
		}
	case opClear:
		if err := w.sink.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear history store: %w", err)
		}
	case opPrune:
		p, ok := w.sink.(Pruner)
		if !ok {
			return nil
		}
		n, err := p.Prune(ctx, op.keep)
		if err != nil {
			slog.Error("Failed to prune history store", "keep", op.keep, "error", err)
			return err
		}
		if n > 0 {
			slog.Debug("Pruned history store", "deleted", n, "keep", op.keep)
		}
	}
	return nil
}
