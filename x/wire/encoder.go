package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// Encoder splits waveforms into segment messages and assigns waveform ids.
// One Encoder belongs to one channel.
type Encoder struct {
	cfg  Config
	next atomic.Uint32
}

// NewEncoder creates an encoder after validating cfg
func NewEncoder(cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{cfg: cfg}, nil
}

// Config returns the encoder configuration
func (e *Encoder) Config() Config {
	return e.cfg
}

// Next returns the id the next encoded waveform will receive
func (e *Encoder) Next() ID {
	return ID(e.next.Load())
}

// Encode splits elements into messages published under baseTopic.
// The whole waveform is validated before an id is consumed, so a waveform that cannot be
// addressed yields no messages at all. An empty waveform yields no messages and no error.
func (e *Encoder) Encode(baseTopic string, elements []int32) ([]Message, error) {
	size := len(elements)
	if size == 0 {
		return nil, nil
	}
	if size > math.MaxInt32 {
		return nil, NewConfigError("waveform of %d elements exceeds int32 size field", size)
	}

	perSegment := e.cfg.ElementsPerSegment()
	count := (size + perSegment - 1) / perSegment
	if count > e.cfg.MaxSegments() {
		return nil, NewConfigError(
			"segment index exceeds configured digit width: %d segments needed, %d digits address %d",
			count, e.cfg.IndexDigits, e.cfg.MaxSegments())
	}

	id := ID(e.next.Add(1) - 1)

	if !strings.HasSuffix(baseTopic, "/") {
		baseTopic += "/"
	}

	messages := make([]Message, 0, count)
	for i := 0; i < count; i++ {
		start := i * perSegment
		end := min(start+perSegment, size)

		payload := make([]byte, MetadataSize+(end-start)*elementSize)
		binary.BigEndian.PutUint32(payload[0:4], uint32(id))
		binary.BigEndian.PutUint32(payload[4:8], uint32(size))
		off := MetadataSize
		for _, v := range elements[start:end] {
			binary.BigEndian.PutUint32(payload[off:], uint32(v))
			off += elementSize
		}

		messages = append(messages, Message{
			Topic:   baseTopic + fmt.Sprintf("%0*d", e.cfg.IndexDigits, i),
			Payload: payload,
		})
	}

	return messages, nil
}
