package codec

import (
	"strings"

	"github.com/compose-network/pvgateway/x/pv"
	"github.com/compose-network/pvgateway/x/wire"
)

// waveformConverter segments int32 arrays on send and reassembles them on receive.
// It owns the channel's waveform id counter and accumulator.
type waveformConverter struct {
	encoder     *wire.Encoder
	accumulator *wire.Accumulator
}

// NewWaveformConverter creates the "wfint" converter
func NewWaveformConverter(cfg wire.Config) (Converter, error) {
	encoder, err := wire.NewEncoder(cfg)
	if err != nil {
		return nil, err
	}
	accumulator, err := wire.NewAccumulator(cfg.DropDistance)
	if err != nil {
		return nil, err
	}
	return &waveformConverter{
		encoder:     encoder,
		accumulator: accumulator,
	}, nil
}

func (c *waveformConverter) Encode(topic string, v pv.Value) ([]wire.Message, error) {
	elements, err := pv.ToInt32Slice(v)
	if err != nil {
		return nil, wire.NewFormatError("wfint channel value").WithCause(err)
	}
	return c.encoder.Encode(topic, elements)
}

func (c *waveformConverter) Decode(topic string, payload []byte) (pv.Value, bool, error) {
	seg, err := wire.Decode(topic, payload)
	if err != nil {
		return nil, false, err
	}
	wf, err := c.accumulator.Push(seg)
	if err != nil || wf == nil {
		return nil, false, err
	}
	return wf.Elements, true, nil
}

func (c *waveformConverter) Subscription(topic string) string {
	return strings.TrimSuffix(topic, "/") + "/#"
}

// Stats implements StatsProvider
func (c *waveformConverter) Stats() wire.Stats {
	return c.accumulator.Stats()
}
