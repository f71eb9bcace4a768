package main

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/events"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/signal"
)

// sampleSource is the part of *consumer.Consumer the processor reads from.
type sampleSource interface {
	ReadMessage(ctx context.Context) (*events.SampleReceived, *kafka.Message, error)
	CommitMessage(ctx context.Context, msg *kafka.Message) error
}

// sampleSink evaluates samples. *engine.Engine implements it.
type sampleSink interface {
	SubmitSample(ctx context.Context, s signal.Sample) error
}

const (
	// readRetryDelay spaces out reads while the broker is unreachable.
	readRetryDelay = time.Second
	// maxSubmitBackoff caps the wait between attempts at a failing sample.
	maxSubmitBackoff = 30 * time.Second
	workerQueueDepth = 16
)

// submitRetryDelay is the first wait after a failed submit. Tests shorten it.
var submitRetryDelay = time.Second

type work struct {
	sample signal.Sample
	msg    *kafka.Message
}

// processSamples reads samples from Kafka and evaluates them until ctx is
// cancelled. Samples for one (metric, scope) always land on the same worker,
// so they are evaluated in partition order.
func processSamples(ctx context.Context, src sampleSource, sink sampleSink, workers int) {
	if workers < 1 {
		workers = 1
	}
	slog.Info("Starting sample processing loop", "workers", workers)

	offsets := newOffsetTracker(src)
	queues := make([]chan work, workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan work, workerQueueDepth)
		wg.Add(1)
		go func(jobs <-chan work) {
			defer wg.Done()
			for job := range jobs {
				if processOne(ctx, sink, job) {
					offsets.complete(ctx, job.msg)
				}
			}
		}(queues[i])
	}

	dispatchMessages(ctx, src, offsets, queues)

	for _, q := range queues {
		close(q)
	}
	wg.Wait()
	slog.Info("Sample processing loop stopped")
}

func workerFor(s signal.Sample, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(s.Metric))
	h.Write([]byte{'|'})
	h.Write([]byte(s.Scope))
	return int(h.Sum32() % uint32(workers))
}

func dispatchMessages(ctx context.Context, src sampleSource, offsets *offsetTracker, queues []chan work) {
	for {
		sample, msg, err := src.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if msg != nil {
				// undecodable payloads are skipped
				slog.Warn("Dropping malformed sample message",
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
				offsets.track(msg)
				offsets.complete(ctx, msg)
				continue
			}
			slog.Error("Failed to read sample", "error", err)
			select {
			case <-time.After(readRetryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		s := sample.ToSample()
		offsets.track(msg)
		select {
		case queues[workerFor(s, len(queues))] <- work{sample: s, msg: msg}:
		case <-ctx.Done():
			return
		}
	}
}

// processOne evaluates one sample and reports whether its offset may be
// committed. Samples the engine rejects as malformed are committed; other
// failures are retried until they succeed or ctx is cancelled, holding back
// later samples for the same key.
func processOne(ctx context.Context, sink sampleSink, job work) bool {
	backoff := submitRetryDelay
	for attempt := 1; ; attempt++ {
		err := sink.SubmitSample(ctx, job.sample)
		switch {
		case err == nil:
			return true
		case errors.Is(err, signal.ErrMalformedSample):
			slog.Warn("Rejected malformed sample",
				"metric", job.sample.Metric,
				"scope", job.sample.Scope,
				"error", err,
			)
			return true
		}

		slog.Error("Failed to process sample",
			"metric", job.sample.Metric,
			"scope", job.sample.Scope,
			"offset", job.msg.Offset,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		backoff = min(backoff*2, maxSubmitBackoff)
	}
}

// offsetTracker commits offsets in read order per partition. An offset is
// committed only once it and every offset read before it on the partition
// have completed.
type offsetTracker struct {
	src   sampleSource
	mu    sync.Mutex
	parts map[int]*partitionOffsets
}

type partitionOffsets struct {
	inflight []*kafka.Message
	done     map[int64]bool
}

func newOffsetTracker(src sampleSource) *offsetTracker {
	return &offsetTracker{src: src, parts: make(map[int]*partitionOffsets)}
}

// track registers msg as in flight. Calls must follow read order.
func (t *offsetTracker) track(msg *kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.parts[msg.Partition]
	if !ok {
		p = &partitionOffsets{done: make(map[int64]bool)}
		t.parts[msg.Partition] = p
	}
	p.inflight = append(p.inflight, msg)
}

// complete marks msg done and commits the highest contiguous completed offset.
func (t *offsetTracker) complete(ctx context.Context, msg *kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.parts[msg.Partition]
	if !ok {
		return
	}
	p.done[msg.Offset] = true

	var last *kafka.Message
	for len(p.inflight) > 0 && p.done[p.inflight[0].Offset] {
		last = p.inflight[0]
		delete(p.done, last.Offset)
		p.inflight = p.inflight[1:]
	}
	if last == nil {
		return
	}
	if err := t.src.CommitMessage(ctx, last); err != nil {
		slog.Error("Failed to commit offset",
			"partition", last.Partition,
			"offset", last.Offset,
			"error", err,
		)
	}
}
