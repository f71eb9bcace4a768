// Package channel defines the notification channel contract and delivers
// payloads through registered senders with retry.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/retry"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// ErrChannelDelivery is wrapped by every failed delivery.
var ErrChannelDelivery = errors.New("channel delivery failed")

// DeliveryError describes a delivery that failed after all attempts.
type DeliveryError struct {
	Channel  rules.Channel
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("channel delivery failed: %s after %d attempt(s): %v", e.Channel, e.Attempts, e.Err)
}

// Is lets errors.Is match ErrChannelDelivery while Unwrap exposes the cause.
func (e *DeliveryError) Is(target error) bool { return target == ErrChannelDelivery }

func (e *DeliveryError) Unwrap() error { return e.Err }

// Sender delivers a payload to one endpoint of a channel.
// The endpoint format depends on the channel:
//   - app: device or topic id for the push gateway
//   - sms: phone number(s), comma-separated
//   - email: address(es), comma-separated
//   - sound: optional sound profile
//   - slack: incoming webhook URL
type Sender interface {
	Send(ctx context.Context, endpoint string, p *Payload) error
	Type() rules.Channel
}

// Registry maps channels to their senders.
type Registry struct {
	mu      sync.RWMutex
	senders map[rules.Channel]Sender
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[rules.Channel]Sender)}
}

// Register adds or replaces the sender for its channel.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Type()] = s
}

// Get returns the sender for a channel.
func (r *Registry) Get(c rules.Channel) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[c]
	return s, ok
}

// List returns the registered channels in a stable order.
func (r *Registry) List() []rules.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rules.Channel, 0, len(r.senders))
	for c := range r.senders {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Result is the acknowledgement or failure of one delivery.
type Result struct {
	Channel  rules.Channel
	Attempts int
	Duration time.Duration
	Err      error
}

// OK reports whether the channel acknowledged the delivery.
func (r Result) OK() bool { return r.Err == nil }

// Dispatcher delivers payloads through the registry with retry.
type Dispatcher struct {
	registry *Registry
	policy   retry.Policy
}

// NewDispatcher creates a dispatcher using the default retry policy.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry, policy: retry.DefaultPolicy()}
}

// WithPolicy overrides the retry policy.
func (d *Dispatcher) WithPolicy(p retry.Policy) *Dispatcher {
	d.policy = p
	return d
}

// Deliver sends p through channel c, retrying transient failures until the
// policy is exhausted or ctx is cancelled. It blocks; callers that must not
// wait run it in a goroutine.
func (d *Dispatcher) Deliver(ctx context.Context, c rules.Channel, endpoint string, p *Payload) Result {
	start := time.Now()
	s, ok := d.registry.Get(c)
	if !ok {
		return Result{
			Channel: c,
			Err:     &DeliveryError{Channel: c, Err: fmt.Errorf("no sender registered for channel %q", c)},
		}
	}

	operation := fmt.Sprintf("send_%s_%s", c, p.RecordID)
	attempts, err := retry.Do(ctx, d.policy, operation, func(ctx context.Context) error {
		return s.Send(ctx, endpoint, p)
	})

	res := Result{Channel: c, Attempts: attempts, Duration: time.Since(start)}
	if err != nil {
		res.Err = &DeliveryError{Channel: c, Attempts: attempts, Err: err}
		slog.Warn("Channel delivery failed",
			"channel", c,
			"rule_id", p.RuleID,
			"record_id", p.RecordID,
			"attempts", attempts,
			"error", err,
		)
		return res
	}
	return res
}
