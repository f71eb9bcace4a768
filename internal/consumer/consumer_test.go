package consumer

import (
	"math"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/events"
)

func TestNewConsumer(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		topic   string
		groupID string
		errMsg  string
	}{
		{name: "valid consumer", brokers: "localhost:9092", topic: "metric.samples", groupID: "alert-engine"},
		{name: "multiple brokers", brokers: "localhost:9092, localhost:9093", topic: "metric.samples", groupID: "alert-engine"},
		{name: "empty brokers", topic: "metric.samples", groupID: "alert-engine", errMsg: "brokers cannot be empty"},
		{name: "empty topic", brokers: "localhost:9092", groupID: "alert-engine", errMsg: "topic cannot be empty"},
		{name: "empty groupID", brokers: "localhost:9092", topic: "metric.samples", errMsg: "groupID cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConsumer(tt.brokers, tt.topic, tt.groupID)
			if tt.errMsg != "" {
				if err == nil || err.Error() != tt.errMsg {
					t.Errorf("NewConsumer() error = %v, want %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewConsumer() error = %v", err)
			}
			c.Close()
		})
	}
}

func protoPayload(t *testing.T, s events.SampleReceived) []byte {
	t.Helper()
	b, err := s.MarshalProto()
	if err != nil {
		t.Fatalf("MarshalProto() error = %v", err)
	}
	return b
}

func jsonMessage(payload string) *kafka.Message {
	return &kafka.Message{
		Value:   []byte(payload),
		Headers: []kafka.Header{{Key: "Content-Type", Value: []byte(events.ContentTypeJSON)}},
	}
}

func TestDecodeSample(t *testing.T) {
	value := 35.0
	tests := []struct {
		name    string
		msg     *kafka.Message
		wantErr string
	}{
		{name: "numeric", msg: &kafka.Message{Value: protoPayload(t, events.SampleReceived{Metric: "churn_risk", Scope: "acme", Value: &value, EventTS: 1710151200000})}},
		{name: "text", msg: &kafka.Message{Value: protoPayload(t, events.SampleReceived{Metric: "gate", Scope: "g1", Text: "open"})}},
		{name: "truncated protobuf", msg: &kafka.Message{Value: []byte{0x0a, 0x05, 'c'}}, wantErr: "failed to unmarshal sample protobuf"},
		{name: "missing value", msg: &kafka.Message{Value: protoPayload(t, events.SampleReceived{Metric: "churn_risk", Scope: "acme"})}, wantErr: "value or text is required"},
		{name: "json numeric", msg: jsonMessage(`{"metric":"churn_risk","scope":"acme","value":35,"event_ts":1710151200000}`)},
		{name: "json text", msg: jsonMessage(`{"metric":"gate","scope":"g1","text":"open"}`)},
		{name: "json malformed", msg: jsonMessage(`churn=35`), wantErr: "failed to unmarshal sample"},
		{name: "json missing metric", msg: jsonMessage(`{"scope":"acme","value":1}`), wantErr: "metric cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeSample(tt.msg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("decodeSample() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeSample() error = %v", err)
			}
			s := got.ToSample()
			if s.Metric == "" || s.Scope == "" {
				t.Errorf("ToSample() = %+v", s)
			}
			if strings.HasSuffix(tt.name, "text") && (!math.IsNaN(s.Value) || s.Text != "open") {
				t.Errorf("text sample = %+v", s)
			}
			if strings.HasSuffix(tt.name, "numeric") && (s.Value != 35 || s.Timestamp.UnixMilli() != 1710151200000) {
				t.Errorf("numeric sample = %+v", s)
			}
		})
	}
}
