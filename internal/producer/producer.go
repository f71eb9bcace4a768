// Package producer publishes rule.changed and alert.lifecycle events to Kafka
// as protobuf.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/events"
	kafkautil "github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/kafka"
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes engine events to their topics. Messages are keyed by rule_id.
type Producer struct {
	rules          messageWriter
	lifecycle      messageWriter
	rulesTopic     string
	lifecycleTopic string
}

// NewProducer creates a producer for the rule change and lifecycle topics.
func NewProducer(brokers, rulesTopic, lifecycleTopic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, rulesTopic); err != nil {
		return nil, err
	}
	if err := kafkautil.ValidateProducerParams(brokers, lifecycleTopic); err != nil {
		return nil, err
	}
	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"rules_topic", rulesTopic,
		"lifecycle_topic", lifecycleTopic,
	)

	kafkautil.EnsureTopic(brokerList[0], rulesTopic)
	kafkautil.EnsureTopic(brokerList[0], lifecycleTopic)

	slog.Info("Kafka producer configured",
		"write_timeout", kafkautil.WriteTimeout,
		"required_acks", "RequireOne",
		"partition_key", "rule_id",
	)

	return &Producer{
		rules:          kafkautil.NewWriter(brokerList, rulesTopic),
		lifecycle:      kafkautil.NewWriter(brokerList, lifecycleTopic),
		rulesTopic:     rulesTopic,
		lifecycleTopic: lifecycleTopic,
	}, nil
}

func ruleChangedMessage(rc *events.RuleChanged) (kafka.Message, error) {
	payload, err := rc.MarshalProto()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal rule changed event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(rc.RuleID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: events.ContentTypeHeader, Value: []byte(events.ContentTypeProtobuf)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(rc.SchemaVersion))},
			{Key: "action", Value: []byte(rc.Action)},
			{Key: "rule_id", Value: []byte(rc.RuleID)},
		},
		Time: time.Unix(rc.UpdatedAt, 0),
	}, nil
}

func transitionMessage(tr *events.AlertTransition) (kafka.Message, error) {
	payload, err := tr.MarshalProto()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal alert transition: %w", err)
	}
	return kafka.Message{
		Key:   []byte(tr.RuleID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: events.ContentTypeHeader, Value: []byte(events.ContentTypeProtobuf)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(tr.SchemaVersion))},
			{Key: "kind", Value: []byte(tr.Kind)},
			{Key: "scope", Value: []byte(tr.Scope)},
		},
		Time: time.UnixMilli(tr.EventTS),
	}, nil
}

// PublishRuleChanged writes rc to the rule change topic and waits for the ack.
func (p *Producer) PublishRuleChanged(ctx context.Context, rc *events.RuleChanged) error {
	msg, err := ruleChangedMessage(rc)
	if err != nil {
		return err
	}
	if err := p.rules.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", p.rulesTopic, err)
	}
	slog.Info("Published rule changed event",
		"rule_id", rc.RuleID,
		"action", rc.Action,
		"version", rc.Version,
	)
	return nil
}

// PublishTransition writes tr to the lifecycle topic and waits for the ack.
func (p *Producer) PublishTransition(ctx context.Context, tr *events.AlertTransition) error {
	msg, err := transitionMessage(tr)
	if err != nil {
		return err
	}
	if err := p.lifecycle.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", p.lifecycleTopic, err)
	}
	slog.Debug("Published alert transition",
		"rule_id", tr.RuleID,
		"scope", tr.Scope,
		"kind", tr.Kind,
	)
	return nil
}

// Close closes both writers.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer")
	errRules := p.rules.Close()
	errLifecycle := p.lifecycle.Close()
	if errRules != nil {
		return errRules
	}
	return errLifecycle
}
