package nats

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/pvgateway/x/transport"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c := New(transport.Config{MaxPayload: 1024}, zerolog.Nop())
	assert.Equal(t, nats.DefaultURL, c.cfg.URL)
	assert.Equal(t, 1024, c.MaxPayload())
	assert.Equal(t, transport.StatusDisconnected, c.Status())
}

func TestClient_NotConnected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := New(transport.Config{MaxPayload: 4}, zerolog.Nop())

	require.ErrorIs(t, c.Publish(ctx, "a/b", make([]byte, 5), transport.PublishOptions{}), transport.ErrPayloadTooLarge)
	require.ErrorIs(t, c.Publish(ctx, "a/b", nil, transport.PublishOptions{}), transport.ErrNotConnected)
	require.ErrorIs(t, c.Subscribe(ctx, "a/#", func(context.Context, string, []byte) {}), transport.ErrNotConnected)

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, transport.StatusClosed, c.Status())
	require.ErrorIs(t, c.Connect(ctx), transport.ErrClosed)
}
