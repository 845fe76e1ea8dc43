package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/pvgateway/x/pv"
)

func TestNewGenerator_Validation(t *testing.T) {
	t.Parallel()

	ioc := NewIOC("wf")
	log := zerolog.Nop()

	_, err := NewGenerator(GeneratorConfig{Elements: 10, Period: time.Second}, ioc, log)
	require.Error(t, err)
	_, err = NewGenerator(GeneratorConfig{PV: "wf", Period: time.Second}, ioc, log)
	require.Error(t, err)
	_, err = NewGenerator(GeneratorConfig{PV: "wf", Elements: 10}, ioc, log)
	require.Error(t, err)
}

func TestGenerator_Waveform(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(GeneratorConfig{PV: "wf", Elements: 4, Amplitude: 100, Period: time.Second}, NewIOC("wf"), zerolog.Nop())
	require.NoError(t, err)

	wf := g.Waveform(time.Unix(0, 0))
	assert.Equal(t, []int32{0, 100, 0, -100}, wf)
}

func TestGenerator_WritesUntilStopped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ioc := NewIOC("wf")

	updates := make(chan pv.Value, 64)
	_, err := ioc.Monitor(ctx, "wf", func(v pv.Value) {
		select {
		case updates <- v:
		default:
		}
	})
	require.NoError(t, err)

	g, err := NewGenerator(GeneratorConfig{PV: "wf", Elements: 16, Period: 5 * time.Millisecond}, ioc, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, g.Start(ctx))
	require.NoError(t, g.Start(ctx))

	select {
	case v := <-updates:
		assert.Len(t, v, 16)
	case <-time.After(2 * time.Second):
		t.Fatal("generator did not write")
	}

	require.NoError(t, g.Stop(ctx))
	require.NoError(t, g.Stop(ctx))

	written := g.Written()
	assert.Positive(t, written)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, written, g.Written())
}
