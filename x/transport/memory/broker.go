// Package memory implements an in-process transport broker with MQTT topic matching.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/compose-network/pvgateway/x/transport"
)

// Interceptor decides the fate of a published message before delivery. Returning false
// drops the message. Tests use it to inject loss and reordering.
type Interceptor func(topic string, payload []byte) bool

type subscription struct {
	filter  string
	handler transport.Handler
	client  *Client
}

// Broker fans published messages out to matching subscriptions synchronously
type Broker struct {
	mu          sync.RWMutex
	subs        []subscription
	interceptor Interceptor
	maxPayload  int
	published   uint64
}

// NewBroker creates a broker. maxPayload <= 0 disables the payload limit.
func NewBroker(maxPayload int) *Broker {
	return &Broker{maxPayload: maxPayload}
}

// SetInterceptor installs or clears the delivery hook
func (b *Broker) SetInterceptor(fn Interceptor) {
	b.mu.Lock()
	b.interceptor = fn
	b.mu.Unlock()
}

// Published returns the number of messages accepted by the broker
func (b *Broker) Published() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published
}

// Client returns a new transport bound to this broker
func (b *Broker) Client() *Client {
	return &Client{broker: b, status: transport.StatusDisconnected}
}

// Deliver pushes a message to matching subscribers, bypassing the interceptor.
// Tests use it to replay captured messages in a chosen order.
func (b *Broker) Deliver(ctx context.Context, topic string, payload []byte) {
	b.mu.RLock()
	targets := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if transport.Match(s.filter, topic) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if s.client.Status() != transport.StatusConnected {
			continue
		}
		data := make([]byte, len(payload))
		copy(data, payload)
		s.handler(ctx, topic, data)
	}
}

func (b *Broker) publish(ctx context.Context, topic string, payload []byte) {
	b.mu.Lock()
	b.published++
	hook := b.interceptor
	b.mu.Unlock()

	if hook != nil && !hook(topic, payload) {
		return
	}
	b.Deliver(ctx, topic, payload)
}

func (b *Broker) subscribe(c *Client, filter string, h transport.Handler) {
	b.mu.Lock()
	b.subs = append(b.subs, subscription{filter: filter, handler: h, client: c})
	b.mu.Unlock()
}

func (b *Broker) unsubscribeAll(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.client != c {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

// Client is a transport.Transport backed by a Broker
type Client struct {
	broker *Broker

	mu     sync.RWMutex
	status transport.Status
}

var _ transport.Transport = (*Client)(nil)

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == transport.StatusClosed {
		return transport.ErrClosed
	}
	c.status = transport.StatusConnected
	return nil
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte, _ transport.PublishOptions) error {
	if err := transport.CheckPayload(payload, c.MaxPayload()); err != nil {
		return err
	}
	if c.Status() != transport.StatusConnected {
		return transport.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.broker.publish(ctx, topic, payload)
	return nil
}

func (c *Client) Subscribe(ctx context.Context, filter string, handler transport.Handler) error {
	if !transport.ValidFilter(filter) {
		return fmt.Errorf("invalid topic filter %q", filter)
	}
	if c.Status() != transport.StatusConnected {
		return transport.ErrNotConnected
	}

	c.broker.subscribe(c, filter, handler)
	return nil
}

func (c *Client) MaxPayload() int {
	return c.broker.maxPayload
}

func (c *Client) Status() transport.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	c.status = transport.StatusClosed
	c.mu.Unlock()

	c.broker.unsubscribeAll(c)
	return nil
}
