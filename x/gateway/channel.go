package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/compose-network/pvgateway/x/codec"
	"github.com/compose-network/pvgateway/x/pv"
	"github.com/compose-network/pvgateway/x/transport"
	"github.com/compose-network/pvgateway/x/wire"
)

const minRetryInterval = 100 * time.Millisecond

// ChannelStats is a snapshot of one channel's counters
type ChannelStats struct {
	Name      string      `json:"name"`
	PV        string      `json:"pv"`
	Topic     string      `json:"topic"`
	Direction Direction   `json:"direction"`
	DataType  string      `json:"datatype"`
	Connected bool        `json:"connected"`
	Sent      uint64      `json:"values_sent"`
	Published uint64      `json:"messages_published"`
	Received  uint64      `json:"messages_received"`
	Delivered uint64      `json:"values_delivered"`
	Dropped   uint64      `json:"dropped"`
	HeldOff   uint64      `json:"held_off"`
	Errors    uint64      `json:"errors"`
	Queued    int         `json:"queued"`
	Wire      *wire.Stats `json:"wire,omitempty"`
}

// Channel moves values between one PV and one topic in one direction
type Channel struct {
	cfg     ChannelConfig
	conv    codec.Converter
	tr      transport.Transport
	pvs     pv.Client
	holdoff *Holdoff
	metrics *Metrics
	events  *EventBus
	log     zerolog.Logger

	queue chan pv.Value

	connected   atomic.Bool
	sent        atomic.Uint64
	published   atomic.Uint64
	received    atomic.Uint64
	delivered   atomic.Uint64
	dropped     atomic.Uint64
	heldOff     atomic.Uint64
	errs        atomic.Uint64
	lastEvicted atomic.Uint64
}

func newChannel(cfg ChannelConfig, conv codec.Converter, g *Gateway) *Channel {
	c := &Channel{
		cfg:     cfg,
		conv:    conv,
		tr:      g.tr,
		pvs:     g.pvs,
		holdoff: g.holdoff,
		metrics: g.metrics,
		events:  g.events,
		log: g.log.With().
			Str("channel", cfg.Name).
			Str("pv", cfg.PV).
			Str("topic", cfg.Topic).
			Str("direction", string(cfg.Direction)).
			Logger(),
	}
	if cfg.Direction == DirectionPM {
		c.queue = make(chan pv.Value, cfg.QueueSize)
	}
	return c
}

// Config returns the resolved channel configuration
func (c *Channel) Config() ChannelConfig {
	return c.cfg
}

// Stats returns a snapshot of the channel counters
func (c *Channel) Stats() ChannelStats {
	s := ChannelStats{
		Name:      c.cfg.Name,
		PV:        c.cfg.PV,
		Topic:     c.cfg.Topic,
		Direction: c.cfg.Direction,
		DataType:  c.cfg.DataType,
		Connected: c.connected.Load(),
		Sent:      c.sent.Load(),
		Published: c.published.Load(),
		Received:  c.received.Load(),
		Delivered: c.delivered.Load(),
		Dropped:   c.dropped.Load(),
		HeldOff:   c.heldOff.Load(),
		Errors:    c.errs.Load(),
		Queued:    len(c.queue),
	}
	if sp, ok := c.conv.(codec.StatsProvider); ok {
		ws := sp.Stats()
		s.Wire = &ws
	}
	return s
}

// run drives a pm channel: it establishes the PV monitor, retrying while the IOC is held
// off, then publishes queued values until ctx is done
func (c *Channel) run(ctx context.Context, retry time.Duration) {
	cancel, err := c.monitor(ctx, retry)
	if err != nil {
		return
	}
	defer cancel()
	defer c.connected.Store(false)

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-c.queue:
			c.send(ctx, v)
		}
	}
}

func (c *Channel) monitor(ctx context.Context, retry time.Duration) (func(), error) {
	if retry < minRetryInterval {
		retry = minRetryInterval
	}
	ioc := IOCEndpoint(c.cfg.PV)

	for {
		if c.holdoff.Allowed(ioc) {
			cancel, err := c.pvs.Monitor(ctx, c.cfg.PV, c.enqueue)
			if err == nil {
				c.connected.Store(true)
				c.log.Info().Msg("Channel connected")
				return cancel, nil
			}
			c.fail(ioc, "monitor", err)
		}

		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// enqueue is the PV monitor callback; it never blocks the PV client
func (c *Channel) enqueue(v pv.Value) {
	if broker := BrokerEndpoint(c.cfg.Topic); !c.holdoff.Allowed(broker) {
		c.skip(broker)
		return
	}

	select {
	case c.queue <- v:
	default:
		c.dropped.Add(1)
		c.metrics.QueueDrops.WithLabelValues(c.cfg.Name).Inc()
		c.events.Publish(Event{Time: time.Now(), Kind: EventDropped, Channel: c.cfg.Name, Error: "send queue full"})
		c.log.Warn().Int("queue_size", c.cfg.QueueSize).Msg("Send queue full, dropping value")
	}
}

// send encodes v and publishes its messages in order, pacing between segments
func (c *Channel) send(ctx context.Context, v pv.Value) {
	msgs, err := c.conv.Encode(c.cfg.Topic, v)
	if err != nil {
		c.recordError("encode", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	start := time.Now()
	opts := transport.PublishOptions{QoS: c.cfg.QoS, Retain: c.cfg.Retain}

	for i, m := range msgs {
		if i > 0 && c.cfg.PublishDelay > 0 {
			timer := time.NewTimer(c.cfg.PublishDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		if err := c.tr.Publish(ctx, m.Topic, m.Payload, opts); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.fail(BrokerEndpoint(c.cfg.Topic), "publish", err)
			return
		}
		c.published.Add(1)
		c.metrics.MessagesTotal.WithLabelValues(c.cfg.Name, string(DirectionPM)).Inc()
	}

	c.sent.Add(1)
	c.metrics.ValuesTotal.WithLabelValues(c.cfg.Name, string(DirectionPM)).Inc()
	c.metrics.WaveformSegments.Observe(float64(len(msgs)))
	c.metrics.PublishDuration.Observe(time.Since(start).Seconds())
	c.events.Publish(Event{
		Time:     time.Now(),
		Kind:     EventPublished,
		Channel:  c.cfg.Name,
		Topic:    c.cfg.Topic,
		Elements: elements(v),
		Segments: len(msgs),
	})
}

// handle is the router callback of an mp channel
func (c *Channel) handle(ctx context.Context, topic string, payload []byte) {
	c.received.Add(1)
	c.metrics.MessagesTotal.WithLabelValues(c.cfg.Name, string(DirectionMP)).Inc()

	ioc := IOCEndpoint(c.cfg.PV)
	if !c.holdoff.Allowed(ioc) {
		c.skip(ioc)
		return
	}

	v, ok, err := c.conv.Decode(topic, payload)
	c.observeWire()
	if err != nil {
		c.recordError("decode", err)
		return
	}
	if !ok {
		return
	}

	if _, isWaveform := c.conv.(codec.StatsProvider); isWaveform {
		c.metrics.WaveformsCompleted.WithLabelValues(c.cfg.Name).Inc()
	}

	if err := c.pvs.Put(ctx, c.cfg.PV, v); err != nil {
		c.fail(ioc, "put", err)
		return
	}

	c.delivered.Add(1)
	c.metrics.ValuesTotal.WithLabelValues(c.cfg.Name, string(DirectionMP)).Inc()
	c.events.Publish(Event{
		Time:     time.Now(),
		Kind:     EventDelivered,
		Channel:  c.cfg.Name,
		Topic:    topic,
		Elements: elements(v),
	})
}

func (c *Channel) observeWire() {
	sp, ok := c.conv.(codec.StatsProvider)
	if !ok {
		return
	}
	st := sp.Stats()
	c.metrics.PendingWaveforms.WithLabelValues(c.cfg.Name).Set(float64(st.Pending))

	for {
		prev := c.lastEvicted.Load()
		if st.Evicted <= prev {
			return
		}
		if c.lastEvicted.CompareAndSwap(prev, st.Evicted) {
			c.metrics.WaveformsEvicted.WithLabelValues(c.cfg.Name).Add(float64(st.Evicted - prev))
			return
		}
	}
}

func (c *Channel) skip(endpoint string) {
	c.heldOff.Add(1)
	c.metrics.HoldoffSkips.WithLabelValues(c.cfg.Name, endpoint).Inc()
	c.events.Publish(Event{Time: time.Now(), Kind: EventDropped, Channel: c.cfg.Name, Error: endpoint + " held off"})
}

// fail holds off endpoint and records err
func (c *Channel) fail(endpoint, op string, err error) {
	c.holdoff.Fail(endpoint)
	c.log.Error().Err(err).Str("endpoint", endpoint).Str("op", op).Msg("Endpoint failed, holding off")
	c.count(op, err)
}

func (c *Channel) recordError(op string, err error) {
	c.log.Warn().Err(err).Str("op", op).Str("kind", errorKind(err)).Msg("Dropping message")
	c.count(op, err)
}

func (c *Channel) count(op string, err error) {
	c.errs.Add(1)
	c.metrics.RecordError(c.cfg.Name, errorKind(err))
	c.events.Publish(Event{Time: time.Now(), Kind: EventError, Channel: c.cfg.Name, Topic: c.cfg.Topic, Error: op + ": " + err.Error()})
}

// errorKind labels err for metrics
func errorKind(err error) string {
	if kind, ok := wire.KindOf(err); ok {
		return kind.String()
	}
	switch {
	case errors.Is(err, transport.ErrPayloadTooLarge),
		errors.Is(err, transport.ErrNotConnected),
		errors.Is(err, transport.ErrClosed):
		return "transport"
	case errors.Is(err, pv.ErrNotFound), errors.Is(err, pv.ErrClosed):
		return "pv"
	default:
		return "other"
	}
}

func elements(v pv.Value) int {
	switch x := v.(type) {
	case []int32:
		return len(x)
	case []byte:
		return len(x)
	case string:
		return len(x)
	default:
		return 1
	}
}
