package codec

import (
	"github.com/compose-network/pvgateway/x/pv"
	"github.com/compose-network/pvgateway/x/wire"
)

// Converter translates between process-variable values and transport messages for one
// channel. Converters may keep per-channel state and must not be shared across channels.
type Converter interface {
	// Encode converts v into the messages to publish under topic, in publish order.
	Encode(topic string, v pv.Value) ([]wire.Message, error)
	// Decode converts one received message. ok is false while no value is ready.
	Decode(topic string, payload []byte) (v pv.Value, ok bool, err error)
	// Subscription returns the transport filter that receives the channel's messages.
	Subscription(topic string) string
}

// StatsProvider is implemented by converters that keep reassembly state
type StatsProvider interface {
	Stats() wire.Stats
}

// Factory builds a fresh converter for one channel
type Factory func(cfg wire.Config) (Converter, error)

// Registry manages converter factories by datatype name
type Registry interface {
	Register(name string, factory Factory)
	New(name string, cfg wire.Config) (Converter, error)
	Names() []string
}
