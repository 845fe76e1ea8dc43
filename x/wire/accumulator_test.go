package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func push(t *testing.T, a *Accumulator, id ID, index, size int, data ...int32) *Waveform {
	t.Helper()
	wf, err := a.Push(Segment{ID: id, Index: index, Size: size, Data: data})
	require.NoError(t, err)
	return wf
}

func newAccumulator(t *testing.T, dropDistance int) *Accumulator {
	t.Helper()
	a, err := NewAccumulator(dropDistance)
	require.NoError(t, err)
	return a
}

func TestEntry_InOrder(t *testing.T) {
	t.Parallel()

	e := newEntry(10)
	done, err := e.add(0, []int32{0, 1, 2})
	require.Nil(t, err)
	assert.False(t, done)
	done, err = e.add(1, []int32{3, 4, 5, 6})
	require.Nil(t, err)
	assert.False(t, done)
	done, err = e.add(2, []int32{7, 8, 9})
	require.Nil(t, err)
	assert.True(t, done)

	out, err := e.join()
	require.Nil(t, err)
	assert.Equal(t, seq(10), out)
}

func TestEntry_Unordered(t *testing.T) {
	t.Parallel()

	e := newEntry(10)
	steps := []struct {
		index int
		data  []int32
	}{
		{4, []int32{7, 8}},
		{2, []int32{4}},
		{0, []int32{0, 1}},
		{5, []int32{9}},
		{1, []int32{2, 3}},
		{3, []int32{5, 6}},
	}
	for i, s := range steps {
		done, err := e.add(s.index, s.data)
		require.Nil(t, err)
		assert.Equal(t, i == len(steps)-1, done)
	}

	out, err := e.join()
	require.Nil(t, err)
	assert.Equal(t, seq(10), out)
}

func TestEntry_LengthErrors(t *testing.T) {
	t.Parallel()

	e := newEntry(6)
	done, err := e.add(0, []int32{0, 1, 2})
	require.Nil(t, err)
	assert.False(t, done)

	_, err = e.add(1, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindProtocol, err.Kind)

	done, err = e.add(1, []int32{3, 4, 5})
	require.Nil(t, err)
	assert.True(t, done)

	_, err = e.add(2, []int32{6})
	require.NotNil(t, err)
	assert.Equal(t, KindProtocol, err.Kind)
}

func TestEntry_DuplicateIndexDoesNotDoubleCount(t *testing.T) {
	t.Parallel()

	e := newEntry(4)
	_, err := e.add(0, []int32{0, 1})
	require.Nil(t, err)
	done, err := e.add(0, []int32{0, 1})
	require.Nil(t, err)
	assert.False(t, done)
	assert.Equal(t, 2, e.received)
}

func TestEntry_MissingIndex(t *testing.T) {
	t.Parallel()

	e := newEntry(4)
	_, err := e.add(0, []int32{0, 1})
	require.Nil(t, err)
	done, err := e.add(2, []int32{2, 3})
	require.Nil(t, err)
	assert.True(t, done)

	_, err = e.join()
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "missing segment index 1")
}

func TestAccumulator_Basic(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 1, 0, 6, 0, 1))
	assert.Nil(t, push(t, a, 1, 2, 6, 4, 5))

	wf := push(t, a, 1, 1, 6, 2, 3)
	require.NotNil(t, wf)
	assert.Equal(t, ID(1), wf.ID)
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5}, wf.Elements)
	assert.Equal(t, 0, a.Pending())
}

func TestAccumulator_OutOfOrderThreeSegments(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 0, 0, 10, 0, 1, 2, 3))
	assert.Nil(t, push(t, a, 0, 2, 10, 8, 9))

	wf := push(t, a, 0, 1, 10, 4, 5, 6, 7)
	require.NotNil(t, wf)
	assert.Equal(t, seq(10), wf.Elements)
}

func TestAccumulator_Interleaved1212(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 1, 0, 4, 10, 11))
	assert.Nil(t, push(t, a, 2, 0, 4, 20, 21))

	wf := push(t, a, 1, 1, 4, 12, 13)
	require.NotNil(t, wf)
	assert.Equal(t, Waveform{ID: 1, Elements: []int32{10, 11, 12, 13}}, *wf)

	wf = push(t, a, 2, 1, 4, 22, 23)
	require.NotNil(t, wf)
	assert.Equal(t, Waveform{ID: 2, Elements: []int32{20, 21, 22, 23}}, *wf)
}

func TestAccumulator_CompletionDropsOlder1221(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 1, 0, 4, 10, 11))
	assert.Nil(t, push(t, a, 2, 0, 4, 20, 21))

	wf := push(t, a, 2, 1, 4, 22, 23)
	require.NotNil(t, wf)
	assert.Equal(t, ID(2), wf.ID)
	assert.Equal(t, 0, a.Pending())

	assert.Nil(t, push(t, a, 1, 1, 4, 12, 13))
}

func TestAccumulator_DropDistance(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 1, 0, 4, 10, 11))
	assert.Nil(t, push(t, a, 2, 0, 4, 20, 21))
	assert.Nil(t, push(t, a, 3, 0, 4, 30, 31))
	assert.Nil(t, push(t, a, 4, 0, 4, 40, 41))
	// id 1 fell more than two ids behind and was evicted
	assert.Nil(t, push(t, a, 1, 1, 4, 12, 13))

	wf := push(t, a, 2, 1, 4, 22, 23)
	require.NotNil(t, wf)
	assert.Equal(t, []int32{20, 21, 22, 23}, wf.Elements)

	wf = push(t, a, 4, 1, 4, 42, 43)
	require.NotNil(t, wf)
	assert.Equal(t, []int32{40, 41, 42, 43}, wf.Elements)
}

func TestAccumulator_StaleWaveformNotCompleted(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 1)
	assert.Nil(t, push(t, a, 1, 0, 4, 10, 11))

	assert.Nil(t, push(t, a, 2, 0, 4, 20, 21))
	require.NotNil(t, push(t, a, 2, 1, 4, 22, 23))
	assert.Nil(t, push(t, a, 3, 0, 4, 30, 31))
	require.NotNil(t, push(t, a, 3, 1, 4, 32, 33))

	assert.Nil(t, push(t, a, 1, 1, 4, 12, 13))
}

func TestAccumulator_ConflictingRedeclaration(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 1, 0, 4, 0, 1))

	_, err := a.Push(Segment{ID: 1, Index: 1, Size: 6, Data: []int32{2, 3, 4, 5}})
	require.Error(t, err)
	assert.True(t, IsProtocol(err))
	assert.Contains(t, err.Error(), "conflicting waveform redeclaration")
	assert.Equal(t, 0, a.Pending())

	// accumulation restarts from empty
	assert.Nil(t, push(t, a, 1, 0, 6, 0, 1))
	wf := push(t, a, 1, 1, 6, 2, 3, 4, 5)
	require.NotNil(t, wf)
	assert.Equal(t, seq(6), wf.Elements)
}

func TestAccumulator_OverflowDropsEntry(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 1, 0, 3, 0, 1))

	_, err := a.Push(Segment{ID: 1, Index: 1, Size: 3, Data: []int32{2, 3}})
	require.Error(t, err)
	assert.True(t, IsProtocol(err))
	assert.Equal(t, 0, a.Pending())
	assert.Equal(t, uint64(1), a.Stats().Errors)
}

func TestAccumulator_EmptySegmentRejected(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	_, err := a.Push(Segment{ID: 1, Index: 0, Size: 3})
	require.Error(t, err)
	assert.True(t, IsProtocol(err))
	assert.Equal(t, 0, a.Pending())
}

func TestAccumulator_MissingIndexAtCompletion(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 1, 0, 4, 0, 1))

	_, err := a.Push(Segment{ID: 1, Index: 2, Size: 4, Data: []int32{2, 3}})
	require.Error(t, err)
	assert.True(t, IsProtocol(err))
	assert.Contains(t, err.Error(), "missing segment index")
	assert.Equal(t, 0, a.Pending())
}

func TestAccumulator_GapNeverCompletesAndIsEvictedLater(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	// three segments of two elements, index 1 never arrives
	assert.Nil(t, push(t, a, 1, 0, 6, 0, 1))
	assert.Nil(t, push(t, a, 1, 2, 6, 4, 5))
	assert.Equal(t, 1, a.Pending())

	assert.Nil(t, push(t, a, 2, 0, 6, 0, 1))
	assert.Nil(t, push(t, a, 3, 0, 6, 0, 1))
	assert.Equal(t, 3, a.Pending())

	assert.Nil(t, push(t, a, 4, 0, 6, 0, 1))
	assert.Equal(t, 3, a.Pending())
	assert.Equal(t, uint64(1), a.Stats().Evicted)
}

func TestAccumulator_DuplicatesAfterCompletionIgnored(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 1, 0, 4, 0, 1))
	require.NotNil(t, push(t, a, 1, 1, 4, 2, 3))

	assert.Nil(t, push(t, a, 1, 0, 4, 0, 1))
	assert.Nil(t, push(t, a, 1, 1, 4, 2, 3))

	stats := a.Stats()
	assert.Equal(t, uint64(1), stats.Completed)
	assert.Equal(t, uint64(2), stats.Duplicates)
	assert.Equal(t, 0, stats.Pending)
}

func TestAccumulator_Wraparound(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	last := ID(0xFFFFFFFF)
	assert.Nil(t, push(t, a, last, 0, 4, 0, 1))
	assert.Nil(t, push(t, a, 0, 0, 4, 5, 6))
	assert.Equal(t, 2, a.Pending())

	wf := push(t, a, 0, 1, 4, 7, 8)
	require.NotNil(t, wf)
	assert.Equal(t, ID(0), wf.ID)
	assert.Equal(t, 0, a.Pending(), "entry before the wrap is older and must be dropped")
}

func TestAccumulator_SenderRestartEvictsFutureIDs(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 100, 0, 4, 0, 1))
	assert.Nil(t, push(t, a, 0, 0, 4, 0, 1))
	assert.Equal(t, 1, a.Pending())
	assert.Equal(t, uint64(1), a.Stats().Evicted)
}

func TestAccumulator_Reset(t *testing.T) {
	t.Parallel()

	a := newAccumulator(t, 2)
	assert.Nil(t, push(t, a, 1, 0, 4, 0, 1))
	a.Reset()
	assert.Equal(t, 0, a.Pending())
}

func TestNewAccumulator_NegativeDistance(t *testing.T) {
	t.Parallel()

	_, err := NewAccumulator(-1)
	require.Error(t, err)
	assert.True(t, IsConfig(err))
}
