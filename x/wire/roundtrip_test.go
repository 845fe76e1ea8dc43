package wire

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundtrip_AnyPermutationWithDuplicates(t *testing.T) {
	t.Parallel()

	sizes := []int{1, 2, 3, 299, 300, 301, 1000, 1234}
	capacities := []int{12, 16, 40, 1208}

	for _, capacity := range capacities {
		for _, n := range sizes {
			t.Run(fmt.Sprintf("cap=%d/n=%d", capacity, n), func(t *testing.T) {
				t.Parallel()

				rng := rand.New(rand.NewSource(int64(capacity*10000 + n)))

				enc, err := NewEncoder(Config{SegmentCapacity: capacity, IndexDigits: 4, DropDistance: 2})
				require.NoError(t, err)

				elements := make([]int32, n)
				for i := range elements {
					elements[i] = rng.Int31() - rng.Int31()
				}

				msgs, err := enc.Encode("VEPP3/wf", elements)
				require.NoError(t, err)

				// shuffle, then sprinkle duplicates anywhere in the stream
				stream := append([]Message(nil), msgs...)
				for i := 0; i < len(msgs)/2+1; i++ {
					stream = append(stream, msgs[rng.Intn(len(msgs))])
				}
				rng.Shuffle(len(stream), func(i, j int) { stream[i], stream[j] = stream[j], stream[i] })

				acc := newAccumulator(t, 2)
				var got []*Waveform
				for _, m := range stream {
					seg, err := Decode(m.Topic, m.Payload)
					require.NoError(t, err)
					wf, err := acc.Push(seg)
					require.NoError(t, err)
					if wf != nil {
						got = append(got, wf)
					}
				}

				require.Len(t, got, 1)
				assert.Equal(t, ID(0), got[0].ID)
				assert.Equal(t, elements, got[0].Elements)
			})
		}
	}
}

func TestRoundtrip_ConsecutiveWaveformsInOrder(t *testing.T) {
	t.Parallel()

	enc, err := NewEncoder(Config{SegmentCapacity: 24, IndexDigits: 3, DropDistance: 1})
	require.NoError(t, err)
	acc := newAccumulator(t, 1)

	for i := 0; i < 20; i++ {
		elements := seq(10 + i)
		msgs, err := enc.Encode("wf", elements)
		require.NoError(t, err)

		var got *Waveform
		for _, m := range msgs {
			seg, err := Decode(m.Topic, m.Payload)
			require.NoError(t, err)
			wf, err := acc.Push(seg)
			require.NoError(t, err)
			if wf != nil {
				require.Nil(t, got)
				got = wf
			}
		}
		require.NotNil(t, got)
		assert.Equal(t, ID(i), got.ID)
		assert.Equal(t, elements, got.Elements)
	}
	assert.Equal(t, 0, acc.Pending())
}

func TestAccumulator_ConcurrentChannels(t *testing.T) {
	t.Parallel()

	const channels = 8
	var wg sync.WaitGroup

	for c := 0; c < channels; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()

			enc, err := NewEncoder(Config{SegmentCapacity: 16, IndexDigits: 3, DropDistance: 2})
			assert.NoError(t, err)
			acc, err := NewAccumulator(2)
			assert.NoError(t, err)

			completed := 0
			for i := 0; i < 50; i++ {
				msgs, err := enc.Encode(fmt.Sprintf("ch%d", c), seq(c+3))
				assert.NoError(t, err)
				for _, m := range msgs {
					seg, err := Decode(m.Topic, m.Payload)
					assert.NoError(t, err)
					wf, err := acc.Push(seg)
					assert.NoError(t, err)
					if wf != nil {
						completed++
					}
				}
			}
			assert.Equal(t, 50, completed)
		}(c)
	}

	wg.Wait()
}
