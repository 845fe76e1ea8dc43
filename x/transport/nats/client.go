// Package nats implements the gateway transport on a core NATS connection.
// QoS and retain options are ignored; core NATS delivery is at-most-once.
package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/compose-network/pvgateway/x/transport"
)

// Client is a transport.Transport over nats.go
type Client struct {
	cfg transport.Config
	log zerolog.Logger

	mu     sync.RWMutex
	conn   *nats.Conn
	subs   []*nats.Subscription
	status transport.Status
}

var _ transport.Transport = (*Client)(nil)

// New creates a client; Connect dials the server
func New(cfg transport.Config, log zerolog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	return &Client{
		cfg:    cfg,
		log:    log.With().Str("component", "nats-transport").Logger(),
		status: transport.StatusDisconnected,
	}
}

func (c *Client) options() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(c.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(transport.StatusReconnecting)
			c.log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			c.setStatus(transport.StatusConnected)
			c.log.Info().Str("url", conn.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			c.setStatus(transport.StatusClosed)
		}),
	}
	if c.cfg.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(c.cfg.ConnectTimeout))
	}
	if c.cfg.Username != "" && c.cfg.Password != "" {
		opts = append(opts, nats.UserInfo(c.cfg.Username, c.cfg.Password))
	}
	if c.cfg.ClientID != "" {
		opts = append(opts, nats.Name(c.cfg.ClientID))
	}
	return opts
}

func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == transport.StatusClosed {
		return transport.ErrClosed
	}
	c.setStatus(transport.StatusConnecting)
	c.log.Info().Str("url", c.cfg.URL).Msg("Connecting to NATS")

	done := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.cfg.URL, c.options()...)
		if err != nil {
			done <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			c.setStatus(transport.StatusDisconnected)
			return fmt.Errorf("connect to %s: %w", c.cfg.URL, err)
		}
	case <-ctx.Done():
		c.setStatus(transport.StatusDisconnected)
		return fmt.Errorf("connect to %s: %w", c.cfg.URL, ctx.Err())
	}

	c.setStatus(transport.StatusConnected)
	c.log.Info().Int("max_payload", c.MaxPayload()).Msg("Connected to NATS")
	return nil
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte, _ transport.PublishOptions) error {
	if err := transport.CheckPayload(payload, c.MaxPayload()); err != nil {
		return err
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return transport.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return conn.Publish(SubjectFromTopic(topic), payload)
}

func (c *Client) Subscribe(ctx context.Context, filter string, handler transport.Handler) error {
	if !transport.ValidFilter(filter) {
		return fmt.Errorf("invalid topic filter %q", filter)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return transport.ErrNotConnected
	}

	sub, err := c.conn.Subscribe(SubjectFromTopic(filter), func(msg *nats.Msg) {
		handler(ctx, TopicFromSubject(msg.Subject), msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	c.subs = append(c.subs, sub)
	return nil
}

// MaxPayload is the smaller of the configured limit and the server's advertised limit
func (c *Client) MaxPayload() int {
	limit := c.cfg.MaxPayload

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn != nil {
		if server := int(conn.MaxPayload()); server > 0 && (limit <= 0 || server < limit) {
			limit = server
		}
	}
	return limit
}

func (c *Client) Status() transport.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Client) setStatus(s transport.Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	subs := c.subs
	c.subs = nil
	c.status = transport.StatusClosed
	c.mu.Unlock()

	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil {
			c.log.Debug().Err(err).Str("subject", s.Subject).Msg("Unsubscribe failed")
		}
	}
	if conn == nil {
		return nil
	}

	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left > 0 && left < timeout {
			timeout = left
		}
	}

	var flushErr error
	if conn.IsConnected() {
		flushErr = conn.FlushTimeout(timeout)
	}
	conn.Close()
	if flushErr != nil {
		return fmt.Errorf("flush on close: %w", flushErr)
	}
	return nil
}
