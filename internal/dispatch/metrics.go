package dispatch

import (
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/metrics"
)

// Recorder receives dispatch metrics.
type Recorder interface {
	RecordOutcome(kind OutcomeKind)
	RecordDelivery(ch rules.Channel, ok bool, d time.Duration)
}

// NoOpRecorder discards metrics.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOutcome(OutcomeKind)                         {}
func (NoOpRecorder) RecordDelivery(rules.Channel, bool, time.Duration) {}

var _ Recorder = NoOpRecorder{}

// PromRecorder exports dispatch metrics to Prometheus. Failed deliveries are
// also counted on Counters when it is set.
type PromRecorder struct {
	Counters interface{ IncrementCustom(name string) }
}

var _ Recorder = PromRecorder{}

func (r PromRecorder) RecordOutcome(kind OutcomeKind) {
	metrics.DispatchOutcomes.WithLabelValues(string(kind)).Inc()
}

func (r PromRecorder) RecordDelivery(ch rules.Channel, ok bool, d time.Duration) {
	metrics.ObserveDelivery(string(ch), ok, d)
	if !ok && r.Counters != nil {
		r.Counters.IncrementCustom("delivery_failed_" + string(ch))
	}
}
