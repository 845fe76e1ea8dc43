package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(i)
	}
	return out
}

func TestNewEncoder_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"capacity below header plus one element", Config{SegmentCapacity: 11, IndexDigits: 3}},
		{"zero digits", Config{SegmentCapacity: 64, IndexDigits: 0}},
		{"too many digits", Config{SegmentCapacity: 64, IndexDigits: 10}},
		{"negative drop distance", Config{SegmentCapacity: 64, IndexDigits: 3, DropDistance: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewEncoder(tt.cfg)
			require.Error(t, err)
			assert.True(t, IsConfig(err))
		})
	}
}

func TestEncoder_SegmentsAndTopics(t *testing.T) {
	t.Parallel()

	// 24 bytes: header plus 4 elements
	enc, err := NewEncoder(Config{SegmentCapacity: 24, IndexDigits: 3, DropDistance: 2})
	require.NoError(t, err)

	msgs, err := enc.Encode("VEPP3/wf", seq(10))
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "VEPP3/wf/000", msgs[0].Topic)
	assert.Equal(t, "VEPP3/wf/001", msgs[1].Topic)
	assert.Equal(t, "VEPP3/wf/002", msgs[2].Topic)

	assert.Len(t, msgs[0].Payload, 24)
	assert.Len(t, msgs[1].Payload, 24)
	assert.Len(t, msgs[2].Payload, 16)

	for _, m := range msgs {
		assert.Equal(t, uint32(0), binary.BigEndian.Uint32(m.Payload[0:4]))
		assert.Equal(t, uint32(10), binary.BigEndian.Uint32(m.Payload[4:8]))
	}
	assert.Equal(t, uint32(8), binary.BigEndian.Uint32(msgs[2].Payload[8:12]))
	assert.Equal(t, uint32(9), binary.BigEndian.Uint32(msgs[2].Payload[12:16]))
}

func TestEncoder_TrailingSeparatorNotDoubled(t *testing.T) {
	t.Parallel()

	enc, err := NewEncoder(Config{SegmentCapacity: 64, IndexDigits: 2})
	require.NoError(t, err)

	msgs, err := enc.Encode("a/b/", seq(3))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a/b/00", msgs[0].Topic)
}

func TestEncoder_IDsIncrement(t *testing.T) {
	t.Parallel()

	enc, err := NewEncoder(DefaultConfig())
	require.NoError(t, err)

	for want := uint32(0); want < 5; want++ {
		msgs, err := enc.Encode("t", seq(2))
		require.NoError(t, err)
		assert.Equal(t, want, binary.BigEndian.Uint32(msgs[0].Payload[0:4]))
	}
	assert.Equal(t, ID(5), enc.Next())
}

func TestEncoder_DigitWidthRejection(t *testing.T) {
	t.Parallel()

	// one element per segment, one digit: at most 10 segments
	enc, err := NewEncoder(Config{SegmentCapacity: 12, IndexDigits: 1})
	require.NoError(t, err)

	msgs, err := enc.Encode("t", seq(11))
	require.Error(t, err)
	assert.True(t, IsConfig(err))
	assert.Contains(t, err.Error(), "digit width")
	assert.Empty(t, msgs)
	assert.Equal(t, ID(0), enc.Next(), "rejected waveform must not consume an id")

	msgs, err = enc.Encode("t", seq(10))
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	assert.Equal(t, "t/9", msgs[9].Topic)
}

func TestEncoder_EmptyWaveform(t *testing.T) {
	t.Parallel()

	enc, err := NewEncoder(DefaultConfig())
	require.NoError(t, err)

	msgs, err := enc.Encode("t", nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, ID(0), enc.Next())
}
