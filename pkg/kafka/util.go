// Package kafka holds the Kafka settings and helpers shared by the alert
// engine's consumer and producer.
package kafka

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	// MaxPollWait bounds how long a fetch waits for new data.
	MaxPollWait = 500 * time.Millisecond
	// CommitInterval is how often processed offsets are flushed.
	CommitInterval = time.Second
	// WriteTimeout bounds one synchronous produce call.
	WriteTimeout = 10 * time.Second

	minFetchBytes = 1
	maxFetchBytes = 10e6

	defaultPartitions = 3
)

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// ValidateConsumerParams checks the arguments every consumer needs.
func ValidateConsumerParams(brokers, topic, groupID string) error {
	if err := ValidateProducerParams(brokers, topic); err != nil {
		return err
	}
	if strings.TrimSpace(groupID) == "" {
		return fmt.Errorf("groupID cannot be empty")
	}
	return nil
}

// ValidateProducerParams checks the arguments every producer needs.
func ValidateProducerParams(brokers, topic string) error {
	if len(ParseBrokers(brokers)) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	return nil
}

// NewReaderConfig returns the consumer-group reader settings. Offsets are
// committed on CommitInterval after the caller commits a message.
func NewReaderConfig(brokers []string, topic, groupID string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       minFetchBytes,
		MaxBytes:       maxFetchBytes,
		MaxWait:        MaxPollWait,
		CommitInterval: CommitInterval,
		StartOffset:    kafka.FirstOffset,
	}
}

// NewWriter returns a synchronous, key-hashed writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// LogReaderConfig logs the settings a reader was created with.
func LogReaderConfig(cfg kafka.ReaderConfig) {
	slog.Info("Kafka consumer configured",
		"topic", cfg.Topic,
		"group_id", cfg.GroupID,
		"min_bytes", cfg.MinBytes,
		"max_bytes", cfg.MaxBytes,
		"max_wait", cfg.MaxWait,
		"commit_interval", cfg.CommitInterval,
	)
}

// EnsureTopic creates topic on broker when it is missing. Failures are logged
// and otherwise ignored; the topic can be created by hand.
func EnsureTopic(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		slog.Warn("Could not connect to Kafka to check topic",
			"broker", broker,
			"topic", topic,
			"error", err,
		)
		return
	}
	defer conn.Close()

	if partitions, err := conn.ReadPartitions(topic); err == nil && len(partitions) > 0 {
		slog.Debug("Topic exists", "topic", topic, "partitions", len(partitions))
		return
	}

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     defaultPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		slog.Warn("Could not create topic",
			"topic", topic,
			"error", err,
			"tip", fmt.Sprintf("kafka-topics --create --bootstrap-server %s --topic %s --partitions %d", broker, topic, defaultPartitions),
		)
		return
	}
	slog.Info("Created topic", "topic", topic, "partitions", defaultPartitions)
}
