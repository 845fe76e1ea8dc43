package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/pvgateway/x/wire"
)

func TestIntConverter(t *testing.T) {
	t.Parallel()

	c, err := NewIntConverter(wire.Config{})
	require.NoError(t, err)

	msgs, err := c.Encode("VEPP3/H/DAC", 200.0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "VEPP3/H/DAC", msgs[0].Topic)
	assert.Equal(t, []byte{0, 0, 0, 200}, msgs[0].Payload)

	v, ok, err := c.Decode("VEPP3/H/DAC", []byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(-1), v)

	_, _, err = c.Decode("VEPP3/H/DAC", []byte{1, 2})
	assert.True(t, wire.IsFormat(err))

	_, err = c.Encode("t", "abc")
	assert.True(t, wire.IsFormat(err))
	assert.Equal(t, "t", c.Subscription("t"))
}

func TestStringConverter(t *testing.T) {
	t.Parallel()

	c, err := NewStringConverter(wire.Config{})
	require.NoError(t, err)

	for _, s := range []string{"", "abcABC", " ", "\n\t\r"} {
		msgs, err := c.Encode("t", s)
		require.NoError(t, err)
		require.Len(t, msgs, 1)

		v, ok, err := c.Decode("t", msgs[0].Payload)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, s, v)
	}
}

func TestTaggedConverter(t *testing.T) {
	t.Parallel()

	c, err := NewTaggedConverter(wire.Config{})
	require.NoError(t, err)

	first, err := c.Encode("t", 5)
	require.NoError(t, err)
	second, err := c.Encode("t", 6)
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 5}, first[0].Payload)
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 6}, second[0].Payload)

	v, ok, err := c.Decode("t", second[0].Payload)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(6), v)
}

func TestWaveformConverter_Roundtrip(t *testing.T) {
	t.Parallel()

	cfg := wire.Config{SegmentCapacity: 24, IndexDigits: 3, DropDistance: 2}
	sender, err := NewWaveformConverter(cfg)
	require.NoError(t, err)
	receiver, err := NewWaveformConverter(cfg)
	require.NoError(t, err)

	assert.Equal(t, "VEPP3/wf/#", receiver.Subscription("VEPP3/wf"))
	assert.Equal(t, "VEPP3/wf/#", receiver.Subscription("VEPP3/wf/"))

	in := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	msgs, err := sender.Encode("VEPP3/wf", in)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	// deliver in reverse order
	var out any
	for i := len(msgs) - 1; i >= 0; i-- {
		v, ok, err := receiver.Decode(msgs[i].Topic, msgs[i].Payload)
		require.NoError(t, err)
		if i > 0 {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok)
		out = v
	}
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, out)

	stats := receiver.(StatsProvider).Stats()
	assert.Equal(t, uint64(1), stats.Completed)
}

func TestWaveformConverter_MalformedSegment(t *testing.T) {
	t.Parallel()

	c, err := NewWaveformConverter(wire.DefaultConfig())
	require.NoError(t, err)

	_, ok, err := c.Decode("VEPP3/wf/abc", make([]byte, 12))
	assert.False(t, ok)
	assert.True(t, wire.IsFormat(err))
	assert.Equal(t, 0, c.(StatsProvider).Stats().Pending)
}

func TestPBValueConverter(t *testing.T) {
	t.Parallel()

	c, err := NewPBValueConverter(wire.Config{})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int32", int32(7), float64(7)},
		{"float", 2.5, 2.5},
		{"string", "on", "on"},
		{"bytes", []byte("raw"), "raw"},
		{"bool", true, true},
		{"waveform", []int32{1, -2, 3}, []int32{1, -2, 3}},
	}

	for _, tt := range tests {
		msgs, err := c.Encode("t", tt.in)
		require.NoError(t, err, tt.name)
		require.Len(t, msgs, 1, tt.name)

		v, ok, err := c.Decode("t", msgs[0].Payload)
		require.NoError(t, err, tt.name)
		assert.True(t, ok, tt.name)
		assert.Equal(t, tt.want, v, tt.name)
	}
}

func TestPBValueConverter_RejectsGarbage(t *testing.T) {
	t.Parallel()

	c, err := NewPBValueConverter(wire.Config{})
	require.NoError(t, err)

	_, _, err = c.Decode("t", []byte{0xFF, 0xFF, 0xFF})
	assert.True(t, wire.IsFormat(err))

	_, err = c.Encode("t", struct{}{})
	assert.True(t, wire.IsFormat(err))
}
