package events

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// Kafka messages carry their encoding in the content-type header. Messages
// without the header are protobuf.
const (
	ContentTypeHeader   = "content-type"
	ContentTypeProtobuf = "application/x-protobuf"
	ContentTypeJSON     = "application/json"
)

var (
	sampleType      protoreflect.MessageDescriptor
	ruleChangedType protoreflect.MessageDescriptor
	transitionType  protoreflect.MessageDescriptor
)

func init() {
	file, err := protodesc.NewFile(eventsFile(), nil)
	if err != nil {
		panic(fmt.Sprintf("events: invalid message descriptors: %v", err))
	}
	sampleType = file.Messages().ByName("SampleReceived")
	ruleChangedType = file.Messages().ByName("RuleChanged")
	transitionType = file.Messages().ByName("AlertTransition")
}

type fieldSpec struct {
	name     string
	kind     descriptorpb.FieldDescriptorProto_Type
	optional bool
}

var (
	typeString = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeDouble = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	typeInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64
	typeInt32  = descriptorpb.FieldDescriptorProto_TYPE_INT32
)

// eventsFile mirrors events.proto. Fields are numbered in declaration order.
func eventsFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("internal/events/events.proto"),
		Package: proto.String("alerting.events.v1"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("SampleReceived",
				fieldSpec{name: "metric", kind: typeString},
				fieldSpec{name: "scope", kind: typeString},
				fieldSpec{name: "value", kind: typeDouble, optional: true},
				fieldSpec{name: "text", kind: typeString},
				fieldSpec{name: "event_ts", kind: typeInt64},
				fieldSpec{name: "schema_version", kind: typeInt32},
			),
			message("RuleChanged",
				fieldSpec{name: "rule_id", kind: typeString},
				fieldSpec{name: "action", kind: typeString},
				fieldSpec{name: "version", kind: typeInt32},
				fieldSpec{name: "updated_at", kind: typeInt64},
				fieldSpec{name: "schema_version", kind: typeInt32},
			),
			message("AlertTransition",
				fieldSpec{name: "kind", kind: typeString},
				fieldSpec{name: "rule_id", kind: typeString},
				fieldSpec{name: "rule_name", kind: typeString},
				fieldSpec{name: "metric", kind: typeString},
				fieldSpec{name: "scope", kind: typeString},
				fieldSpec{name: "state", kind: typeString},
				fieldSpec{name: "severity", kind: typeString},
				fieldSpec{name: "value", kind: typeDouble, optional: true},
				fieldSpec{name: "text", kind: typeString},
				fieldSpec{name: "record_id", kind: typeString},
				fieldSpec{name: "user_id", kind: typeString},
				fieldSpec{name: "event_ts", kind: typeInt64},
				fieldSpec{name: "schema_version", kind: typeInt32},
			),
		},
	}
}

// message builds a proto3 message. Optional fields get the synthetic oneof
// protoc generates for them.
func message(name string, fields ...fieldSpec) *descriptorpb.DescriptorProto {
	msg := &descriptorpb.DescriptorProto{Name: proto.String(name)}
	for i, f := range fields {
		fd := &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(f.name),
			Number: proto.Int32(int32(i + 1)),
			Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:   f.kind.Enum(),
		}
		if f.optional {
			fd.OneofIndex = proto.Int32(int32(len(msg.OneofDecl)))
			fd.Proto3Optional = proto.Bool(true)
			msg.OneofDecl = append(msg.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String("_" + f.name)})
		}
		msg.Field = append(msg.Field, fd)
	}
	return msg
}

func field(m *dynamicpb.Message, name string) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(protoreflect.Name(name))
}

func setString(m *dynamicpb.Message, name, v string) {
	m.Set(field(m, name), protoreflect.ValueOfString(v))
}

func setInt64(m *dynamicpb.Message, name string, v int64) {
	m.Set(field(m, name), protoreflect.ValueOfInt64(v))
}

func setInt32(m *dynamicpb.Message, name string, v int) {
	m.Set(field(m, name), protoreflect.ValueOfInt32(int32(v)))
}

func setOptionalDouble(m *dynamicpb.Message, name string, v *float64) {
	if v != nil {
		m.Set(field(m, name), protoreflect.ValueOfFloat64(*v))
	}
}

func getString(m *dynamicpb.Message, name string) string {
	return m.Get(field(m, name)).String()
}

func getInt(m *dynamicpb.Message, name string) int64 {
	return m.Get(field(m, name)).Int()
}

func getOptionalDouble(m *dynamicpb.Message, name string) *float64 {
	fd := field(m, name)
	if !m.Has(fd) {
		return nil
	}
	v := m.Get(fd).Float()
	return &v
}

// MarshalProto encodes the sample for metric.samples.
func (s *SampleReceived) MarshalProto() ([]byte, error) {
	m := dynamicpb.NewMessage(sampleType)
	setString(m, "metric", s.Metric)
	setString(m, "scope", s.Scope)
	setOptionalDouble(m, "value", s.Value)
	setString(m, "text", s.Text)
	setInt64(m, "event_ts", s.EventTS)
	setInt32(m, "schema_version", s.SchemaVersion)
	return proto.Marshal(m)
}

// UnmarshalSample decodes a metric.samples protobuf payload.
func UnmarshalSample(data []byte) (*SampleReceived, error) {
	m := dynamicpb.NewMessage(sampleType)
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sample protobuf: %w", err)
	}
	return &SampleReceived{
		Metric:        getString(m, "metric"),
		Scope:         getString(m, "scope"),
		Value:         getOptionalDouble(m, "value"),
		Text:          getString(m, "text"),
		EventTS:       getInt(m, "event_ts"),
		SchemaVersion: int(getInt(m, "schema_version")),
	}, nil
}

// MarshalProto encodes the event for rule.changed.
func (rc *RuleChanged) MarshalProto() ([]byte, error) {
	m := dynamicpb.NewMessage(ruleChangedType)
	setString(m, "rule_id", rc.RuleID)
	setString(m, "action", rc.Action)
	setInt32(m, "version", rc.Version)
	setInt64(m, "updated_at", rc.UpdatedAt)
	setInt32(m, "schema_version", rc.SchemaVersion)
	return proto.Marshal(m)
}

// UnmarshalRuleChanged decodes a rule.changed protobuf payload.
func UnmarshalRuleChanged(data []byte) (*RuleChanged, error) {
	m := dynamicpb.NewMessage(ruleChangedType)
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule changed protobuf: %w", err)
	}
	return &RuleChanged{
		RuleID:        getString(m, "rule_id"),
		Action:        getString(m, "action"),
		Version:       int(getInt(m, "version")),
		UpdatedAt:     getInt(m, "updated_at"),
		SchemaVersion: int(getInt(m, "schema_version")),
	}, nil
}

// MarshalProto encodes the transition for alert.lifecycle.
func (tr *AlertTransition) MarshalProto() ([]byte, error) {
	m := dynamicpb.NewMessage(transitionType)
	setString(m, "kind", tr.Kind)
	setString(m, "rule_id", tr.RuleID)
	setString(m, "rule_name", tr.RuleName)
	setString(m, "metric", tr.Metric)
	setString(m, "scope", tr.Scope)
	setString(m, "state", tr.State)
	setString(m, "severity", string(tr.Severity))
	setOptionalDouble(m, "value", tr.Value)
	setString(m, "text", tr.Text)
	setString(m, "record_id", tr.RecordID)
	setString(m, "user_id", tr.User)
	setInt64(m, "event_ts", tr.EventTS)
	setInt32(m, "schema_version", tr.SchemaVersion)
	return proto.Marshal(m)
}

// UnmarshalTransition decodes an alert.lifecycle protobuf payload.
func UnmarshalTransition(data []byte) (*AlertTransition, error) {
	m := dynamicpb.NewMessage(transitionType)
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert transition protobuf: %w", err)
	}
	return &AlertTransition{
		Kind:          getString(m, "kind"),
		RuleID:        getString(m, "rule_id"),
		RuleName:      getString(m, "rule_name"),
		Metric:        getString(m, "metric"),
		Scope:         getString(m, "scope"),
		State:         getString(m, "state"),
		Severity:      rules.Severity(getString(m, "severity")),
		Value:         getOptionalDouble(m, "value"),
		Text:          getString(m, "text"),
		RecordID:      getString(m, "record_id"),
		User:          getString(m, "user_id"),
		EventTS:       getInt(m, "event_ts"),
		SchemaVersion: int(getInt(m, "schema_version")),
	}, nil
}
