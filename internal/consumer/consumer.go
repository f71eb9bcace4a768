// Package consumer reads metric samples from the metric.samples topic.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/events"
	kafkautil "github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/kafka"
)

// Consumer wraps a Kafka reader and decodes SampleReceived messages.
// Offsets are committed explicitly, giving at-least-once delivery.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a consumer-group reader for topic.
func NewConsumer(brokers, topic, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}
	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	cfg := kafkautil.NewReaderConfig(brokerList, topic, groupID)
	reader := kafka.NewReader(cfg)
	kafkautil.LogReaderConfig(cfg)

	return &Consumer{reader: reader, topic: topic}, nil
}

func contentType(msg *kafka.Message) string {
	for _, h := range msg.Headers {
		if strings.EqualFold(h.Key, events.ContentTypeHeader) {
			return string(h.Value)
		}
	}
	return ""
}

// decodeSample unmarshals and validates one message. Payloads are protobuf
// unless the content-type header says JSON.
func decodeSample(msg *kafka.Message) (*events.SampleReceived, error) {
	var sample *events.SampleReceived
	if contentType(msg) == events.ContentTypeJSON {
		sample = &events.SampleReceived{}
		if err := json.Unmarshal(msg.Value, sample); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sample: %w", err)
		}
	} else {
		decoded, err := events.UnmarshalSample(msg.Value)
		if err != nil {
			return nil, err
		}
		sample = decoded
	}
	if err := sample.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sample: %w", err)
	}
	return sample, nil
}

// ReadMessage blocks for the next message and decodes it. When decoding
// fails the raw message is still returned so the caller can commit past it.
func (c *Consumer) ReadMessage(ctx context.Context) (*events.SampleReceived, *kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}
	sample, err := decodeSample(&msg)
	if err != nil {
		return nil, &msg, err
	}
	return sample, &msg, nil
}

// CommitMessage commits the offset for msg.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Close closes the reader.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	slog.Info("Kafka consumer closed successfully")
	return nil
}
