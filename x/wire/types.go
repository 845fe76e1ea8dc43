// Package wire implements the segment format used to carry int32 waveforms over a
// publish/subscribe transport with bounded message size.
//
// A waveform is split by an Encoder into messages of at most Config.SegmentCapacity bytes:
//
//	offset 0  int32 BE  waveform id
//	offset 4  int32 BE  total element count of the waveform
//	offset 8  int32 BE  elements of this segment
//
// published on "<base topic>/<zero padded segment index>". Decode parses one such message
// and an Accumulator collects segments until a waveform is complete.
package wire

// MetadataSize is the size of the segment header in bytes
const MetadataSize = 8

// elementSize is the encoded size of one waveform element
const elementSize = 4

// maxIndexDigits keeps 10^digits within int range on every platform
const maxIndexDigits = 9

// ID identifies one waveform on a channel. It is carried as int32 on the wire and
// compared with circular arithmetic, so the counter may wrap freely.
type ID uint32

// Distance returns the signed circular distance from other to id.
func (id ID) Distance(other ID) int32 {
	return int32(id - other)
}

// Waveform is a fully reassembled array value
type Waveform struct {
	ID       ID
	Elements []int32
}

// Segment is one decoded wire message
type Segment struct {
	ID    ID
	Index int
	Size  int
	Data  []int32
}

// Message is one transport message ready to publish
type Message struct {
	Topic   string
	Payload []byte
}

// Config holds the per-channel segmentation settings
type Config struct {
	// SegmentCapacity is the max payload size in bytes, including the 8 byte header.
	SegmentCapacity int `mapstructure:"segment_size_max"     yaml:"segment_size_max"`
	// IndexDigits is the number of decimal digits in the topic suffix.
	IndexDigits int `mapstructure:"segment_index_digits" yaml:"segment_index_digits"`
	// DropDistance is how many waveform ids an incomplete waveform may fall behind.
	DropDistance int `mapstructure:"waveform_queue_size"  yaml:"waveform_queue_size"`
}

// DefaultConfig returns settings matching the historical gateway deployment
func DefaultConfig() Config {
	return Config{
		SegmentCapacity: 1208, // 300 elements per segment
		IndexDigits:     3,
		DropDistance:    2,
	}
}

// Validate checks that a segment can carry at least one element
func (c Config) Validate() error {
	if c.SegmentCapacity < MetadataSize+elementSize {
		return NewConfigError("segment capacity %d bytes leaves no room for data (min %d)",
			c.SegmentCapacity, MetadataSize+elementSize)
	}
	if c.IndexDigits < 1 || c.IndexDigits > maxIndexDigits {
		return NewConfigError("segment index digits must be between 1 and %d, got %d",
			maxIndexDigits, c.IndexDigits)
	}
	if c.DropDistance < 0 {
		return NewConfigError("drop distance must not be negative, got %d", c.DropDistance)
	}
	return nil
}

// ElementsPerSegment returns how many elements fit in one segment
func (c Config) ElementsPerSegment() int {
	return (c.SegmentCapacity - MetadataSize) / elementSize
}

// MaxSegments returns how many segment indexes the topic suffix can address
func (c Config) MaxSegments() int {
	n := 1
	for i := 0; i < c.IndexDigits; i++ {
		n *= 10
	}
	return n
}
