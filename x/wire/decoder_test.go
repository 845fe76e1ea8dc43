package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(id, size int32, data ...int32) []byte {
	b := append(EncodeInt32(id), EncodeInt32(size)...)
	for _, v := range data {
		b = append(b, EncodeInt32(v)...)
	}
	return b
}

func TestDecode_Valid(t *testing.T) {
	t.Parallel()

	seg, err := Decode("VEPP3/wf/012", payload(5, 100, 1, -2, 3))
	require.NoError(t, err)
	assert.Equal(t, ID(5), seg.ID)
	assert.Equal(t, 12, seg.Index)
	assert.Equal(t, 100, seg.Size)
	assert.Equal(t, []int32{1, -2, 3}, seg.Data)
}

func TestDecode_NegativeIDWraps(t *testing.T) {
	t.Parallel()

	seg, err := Decode("t/0", payload(-1, 1, 9))
	require.NoError(t, err)
	assert.Equal(t, ID(0xFFFFFFFF), seg.ID)
}

func TestDecode_FormatErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		topic   string
		payload []byte
	}{
		{"missing suffix", "VEPP3/wf/", payload(1, 1, 1)},
		{"non numeric suffix", "VEPP3/wf/x1", payload(1, 1, 1)},
		{"signed suffix", "VEPP3/wf/-1", payload(1, 1, 1)},
		{"short header", "t/0", []byte{0, 0, 0, 1, 0, 0}},
		{"misaligned data", "t/0", append(payload(1, 1), 1, 2, 3)},
		{"negative size", "t/0", payload(1, -4, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode(tt.topic, tt.payload)
			require.Error(t, err)
			assert.True(t, IsFormat(err), "got %v", err)
		})
	}
}

func TestDecode_HeaderOnly(t *testing.T) {
	t.Parallel()

	seg, err := Decode("t/3", payload(1, 4))
	require.NoError(t, err)
	assert.Empty(t, seg.Data)
}
