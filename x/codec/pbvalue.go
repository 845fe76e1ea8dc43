package codec

import (
	"math"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/compose-network/pvgateway/x/pv"
	"github.com/compose-network/pvgateway/x/wire"
)

// pbValueConverter carries a self-describing google.protobuf.Value per message
type pbValueConverter struct{}

// NewPBValueConverter creates the "pbvalue" converter
func NewPBValueConverter(wire.Config) (Converter, error) {
	return pbValueConverter{}, nil
}

func (pbValueConverter) Encode(topic string, v pv.Value) ([]wire.Message, error) {
	msg, err := toProtoValue(v)
	if err != nil {
		return nil, wire.NewFormatError("pbvalue channel value").WithCause(err)
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, wire.NewFormatError("failed to marshal").WithCause(err)
	}
	return []wire.Message{{Topic: topic, Payload: data}}, nil
}

func (pbValueConverter) Decode(_ string, payload []byte) (pv.Value, bool, error) {
	var msg structpb.Value
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return nil, false, wire.NewFormatError("failed to unmarshal").WithCause(err)
	}

	switch kind := msg.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return kind.NumberValue, true, nil
	case *structpb.Value_StringValue:
		return kind.StringValue, true, nil
	case *structpb.Value_BoolValue:
		return kind.BoolValue, true, nil
	case *structpb.Value_ListValue:
		elements, err := fromProtoList(kind.ListValue)
		if err != nil {
			return nil, false, err
		}
		return elements, true, nil
	case *structpb.Value_NullValue, nil:
		return nil, false, nil
	default:
		return nil, false, wire.NewFormatError("unsupported value kind %T", kind)
	}
}

func (pbValueConverter) Subscription(topic string) string {
	return topic
}

func toProtoValue(v pv.Value) (*structpb.Value, error) {
	switch x := v.(type) {
	case []int32:
		values := make([]*structpb.Value, len(x))
		for i, e := range x {
			values[i] = structpb.NewNumberValue(float64(e))
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
	case int32:
		return structpb.NewNumberValue(float64(x)), nil
	case []byte:
		return structpb.NewStringValue(string(x)), nil
	default:
		return structpb.NewValue(v)
	}
}

// fromProtoList accepts lists of integral numbers within int32 range
func fromProtoList(list *structpb.ListValue) ([]int32, error) {
	out := make([]int32, len(list.GetValues()))
	for i, e := range list.GetValues() {
		n, ok := e.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, wire.NewFormatError("list element %d is not a number", i)
		}
		f := n.NumberValue
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return nil, wire.NewFormatError("list element %d (%v) is not an int32", i, f)
		}
		out[i] = int32(f)
	}
	return out, nil
}
