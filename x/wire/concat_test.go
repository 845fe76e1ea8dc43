package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcat(t *testing.T) {
	t.Parallel()

	segments := map[int][]int32{
		2: {7},
		0: {1, 2, 3},
		1: {4, 5, 6},
	}
	out := Concat(segments, 7)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6, 7}, out)
	assert.Equal(t, 7, cap(out))
}

func TestConcat_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Concat(map[int][]int32{}, 0))
}
