package codec

import (
	"sync/atomic"

	"github.com/compose-network/pvgateway/x/pv"
	"github.com/compose-network/pvgateway/x/wire"
)

// intConverter carries one 32-bit big-endian integer per message
type intConverter struct{}

// NewIntConverter creates the "int" converter
func NewIntConverter(wire.Config) (Converter, error) {
	return intConverter{}, nil
}

func (intConverter) Encode(topic string, v pv.Value) ([]wire.Message, error) {
	n, err := pv.ToInt32(v)
	if err != nil {
		return nil, wire.NewFormatError("int channel value").WithCause(err)
	}
	return []wire.Message{{Topic: topic, Payload: wire.EncodeInt32(n)}}, nil
}

func (intConverter) Decode(_ string, payload []byte) (pv.Value, bool, error) {
	n, err := wire.DecodeInt32(payload)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (intConverter) Subscription(topic string) string {
	return topic
}

// stringConverter carries opaque bytes unchanged
type stringConverter struct{}

// NewStringConverter creates the "string" converter
func NewStringConverter(wire.Config) (Converter, error) {
	return stringConverter{}, nil
}

func (stringConverter) Encode(topic string, v pv.Value) ([]wire.Message, error) {
	return []wire.Message{{Topic: topic, Payload: wire.EncodeBytes(pv.ToBytes(v))}}, nil
}

func (stringConverter) Decode(_ string, payload []byte) (pv.Value, bool, error) {
	return string(wire.DecodeBytes(payload)), true, nil
}

func (stringConverter) Subscription(topic string) string {
	return topic
}

// taggedConverter carries one value in waveform header form (id, 1, value)
type taggedConverter struct {
	next atomic.Uint32
}

// NewTaggedConverter creates the "wfint1" converter
func NewTaggedConverter(wire.Config) (Converter, error) {
	return &taggedConverter{}, nil
}

func (c *taggedConverter) Encode(topic string, v pv.Value) ([]wire.Message, error) {
	n, err := pv.ToInt32(v)
	if err != nil {
		return nil, wire.NewFormatError("wfint1 channel value").WithCause(err)
	}
	id := wire.ID(c.next.Add(1) - 1)
	return []wire.Message{{Topic: topic, Payload: wire.EncodeTagged(id, n)}}, nil
}

func (c *taggedConverter) Decode(_ string, payload []byte) (pv.Value, bool, error) {
	_, n, err := wire.DecodeTagged(payload)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (c *taggedConverter) Subscription(topic string) string {
	return topic
}
