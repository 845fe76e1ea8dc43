// Package mqtt implements the gateway transport on an MQTT broker using the eclipse paho client.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/compose-network/pvgateway/x/transport"
)

const disconnectQuiesce = 250 // milliseconds

var errTokenTimeout = errors.New("mqtt operation timed out")

// Client is a transport.Transport over paho
type Client struct {
	cfg    transport.Config
	log    zerolog.Logger
	client paho.Client

	mu     sync.RWMutex
	subs   map[string]transport.Handler
	status transport.Status
	ctx    context.Context
}

var _ transport.Transport = (*Client)(nil)

// New creates a client; Connect dials the broker. An empty client id gets a random one.
func New(cfg transport.Config, log zerolog.Logger) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = "pvgateway-" + uuid.NewString()[:8]
	}

	c := &Client{
		cfg:    cfg,
		log:    log.With().Str("component", "mqtt-transport").Str("client_id", cfg.ClientID).Logger(),
		subs:   make(map[string]transport.Handler),
		status: transport.StatusDisconnected,
		ctx:    context.Background(),
	}
	c.client = paho.NewClient(c.options())
	return c
}

func (c *Client) options() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(c.cfg.URL).
		SetClientID(c.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.setStatus(transport.StatusReconnecting)
			c.log.Warn().Err(err).Msg("Connection to broker lost")
		})

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	if c.cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	}
	if c.cfg.ReconnectWait > 0 {
		opts.SetConnectRetryInterval(c.cfg.ReconnectWait)
		opts.SetMaxReconnectInterval(c.cfg.ReconnectWait * 10)
	}
	return opts
}

// onConnect restores subscriptions; the session is clean on every connect
func (c *Client) onConnect(cl paho.Client) {
	c.setStatus(transport.StatusConnected)
	c.log.Info().Str("broker", c.cfg.URL).Msg("Connected to broker")

	c.mu.RLock()
	filters := make(map[string]transport.Handler, len(c.subs))
	for f, h := range c.subs {
		filters[f] = h
	}
	c.mu.RUnlock()

	for filter, h := range filters {
		tok := cl.Subscribe(filter, c.cfg.SubscribeQoS, c.callback(h))
		go func(filter string) {
			if tok.WaitTimeout(c.timeout()) && tok.Error() != nil {
				c.log.Error().Err(tok.Error()).Str("filter", filter).Msg("Resubscribe failed")
			}
		}(filter)
	}
}

func (c *Client) callback(h transport.Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		c.mu.RLock()
		ctx := c.ctx
		c.mu.RUnlock()
		h(ctx, msg.Topic(), msg.Payload())
	}
}

func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == transport.StatusClosed {
		return transport.ErrClosed
	}
	c.mu.Lock()
	c.ctx = context.WithoutCancel(ctx)
	c.status = transport.StatusConnecting
	c.mu.Unlock()

	c.log.Info().Str("broker", c.cfg.URL).Msg("Connecting to broker")
	if err := wait(ctx, c.client.Connect(), c.timeout()); err != nil {
		c.setStatus(transport.StatusDisconnected)
		return fmt.Errorf("connect to %s: %w", c.cfg.URL, err)
	}
	return nil
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte, opts transport.PublishOptions) error {
	if err := transport.CheckPayload(payload, c.MaxPayload()); err != nil {
		return err
	}
	if !c.client.IsConnectionOpen() {
		return transport.ErrNotConnected
	}
	if err := wait(ctx, c.client.Publish(topic, opts.QoS, opts.Retain, payload), c.timeout()); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context, filter string, handler transport.Handler) error {
	if !transport.ValidFilter(filter) {
		return fmt.Errorf("invalid topic filter %q", filter)
	}
	if !c.client.IsConnectionOpen() {
		return transport.ErrNotConnected
	}

	c.mu.Lock()
	c.subs[filter] = handler
	c.mu.Unlock()

	if err := wait(ctx, c.client.Subscribe(filter, c.cfg.SubscribeQoS, c.callback(handler)), c.timeout()); err != nil {
		c.mu.Lock()
		delete(c.subs, filter)
		c.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	c.log.Debug().Str("filter", filter).Msg("Subscribed")
	return nil
}

func (c *Client) MaxPayload() int {
	return c.cfg.MaxPayload
}

func (c *Client) Status() transport.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Client) setStatus(s transport.Status) {
	c.mu.Lock()
	if c.status != transport.StatusClosed {
		c.status = s
	}
	c.mu.Unlock()
}

func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	c.status = transport.StatusClosed
	c.subs = make(map[string]transport.Handler)
	c.mu.Unlock()

	if c.client.IsConnectionOpen() {
		c.client.Disconnect(disconnectQuiesce)
	}
	c.log.Info().Msg("Disconnected from broker")
	return nil
}

func (c *Client) timeout() time.Duration {
	if c.cfg.ConnectTimeout > 0 {
		return c.cfg.ConnectTimeout
	}
	return 10 * time.Second
}

// wait blocks until the token completes, ctx is done or the timeout passes
func wait(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errTokenTimeout
	}
}
