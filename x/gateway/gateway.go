// Package gateway bridges process variables and a publish/subscribe transport. Each
// configured channel owns one converter and moves values in one direction: pm channels
// publish PV updates, mp channels write received messages back to PVs.
package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/compose-network/pvgateway/x/codec"
	"github.com/compose-network/pvgateway/x/pv"
	"github.com/compose-network/pvgateway/x/transport"
	"github.com/compose-network/pvgateway/x/wire"
)

// Stats is a snapshot of the whole gateway
type Stats struct {
	Transport string               `json:"transport"`
	Channels  []ChannelStats       `json:"channels"`
	Unrouted  uint64               `json:"unrouted"`
	HeldOff   map[string]time.Time `json:"held_off"`
}

// Option customizes a Gateway
type Option func(*Gateway)

// WithRegistry replaces the built-in converter registry
func WithRegistry(r codec.Registry) Option {
	return func(g *Gateway) { g.registry = r }
}

// WithMetrics sets the metrics the gateway reports to
func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithEventBus sets the bus receiving gateway events
func WithEventBus(b *EventBus) Option {
	return func(g *Gateway) { g.events = b }
}

// WithClock sets the time source of the hold-off tracker
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// Gateway owns the channels and their shared transport and PV client
type Gateway struct {
	cfg      Config
	tr       transport.Transport
	pvs      pv.Client
	registry codec.Registry
	router   *Router
	holdoff  *Holdoff
	metrics  *Metrics
	events   *EventBus
	now      func() time.Time
	log      zerolog.Logger

	channels []*Channel
	unrouted atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New validates cfg and builds every channel. Transport and PV client are not touched
// until Start.
func New(cfg Config, tr transport.Transport, pvs pv.Client, log zerolog.Logger, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:    cfg,
		tr:     tr,
		pvs:    pvs,
		router: NewRouter(),
		log:    log.With().Str("component", "gateway").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.registry == nil {
		g.registry = codec.NewRegistry()
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(nil)
	}
	if g.events == nil {
		g.events = NewEventBus()
	}
	g.holdoff = NewHoldoff(cfg.Holdoff, g.now)

	for _, cc := range cfg.Channels {
		cc = cc.resolve(cfg)
		conv, err := g.registry.New(cc.DataType, cc.Wire)
		if err != nil {
			return nil, wire.NewConfigError("channel %q", cc.Name).WithCause(err)
		}
		if cc.DataType == "" {
			cc.DataType = codec.DefaultType
		}

		ch := newChannel(cc, conv, g)
		if cc.Direction == DirectionMP {
			if err := g.router.Register(cc.Topic, ch.handle); err != nil {
				return nil, wire.NewConfigError("channel %q", cc.Name).WithCause(err)
			}
		}
		g.channels = append(g.channels, ch)
	}

	return g, nil
}

// Start subscribes the mp channels and starts a worker per pm channel
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	subscribed := make(map[string]struct{})
	for _, ch := range g.channels {
		if ch.cfg.Direction != DirectionMP {
			continue
		}
		filter := ch.conv.Subscription(ch.cfg.Topic)
		if _, ok := subscribed[filter]; !ok {
			if err := g.tr.Subscribe(runCtx, filter, g.dispatch); err != nil {
				cancel()
				return fmt.Errorf("subscribe channel %q: %w", ch.cfg.Name, err)
			}
			subscribed[filter] = struct{}{}
		}
		ch.connected.Store(true)
		g.log.Info().Str("channel", ch.cfg.Name).Str("filter", filter).Msg("Channel subscribed")
	}

	for _, ch := range g.channels {
		if ch.cfg.Direction != DirectionPM {
			continue
		}
		g.wg.Add(1)
		go func(ch *Channel) {
			defer g.wg.Done()
			ch.run(runCtx, g.cfg.Holdoff)
		}(ch)
	}

	g.cancel = cancel
	g.started = true
	g.log.Info().Int("channels", len(g.channels)).Msg("Gateway started")
	return nil
}

// dispatch is the transport handler shared by every subscription
func (g *Gateway) dispatch(ctx context.Context, topic string, payload []byte) {
	if err := g.router.Route(ctx, topic, payload); err != nil {
		g.unrouted.Add(1)
		g.metrics.UnroutedTotal.Inc()
		g.log.Debug().Str("topic", topic).Msg("Dropping unrouted message")
	}
}

// Stop cancels the workers and waits for them to exit or ctx to end
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = false
	g.cancel()
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.log.Info().Msg("Gateway stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gateway stop: %w", ctx.Err())
	}
}

// Channels returns the resolved configuration of every channel, sorted by name
func (g *Gateway) Channels() []ChannelConfig {
	out := make([]ChannelConfig, 0, len(g.channels))
	for _, ch := range g.channels {
		out = append(out, ch.Config())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Channel returns the channel called name
func (g *Gateway) Channel(name string) (*Channel, bool) {
	for _, ch := range g.channels {
		if ch.cfg.Name == name {
			return ch, true
		}
	}
	return nil, false
}

// Stats returns a snapshot of all channels
func (g *Gateway) Stats() Stats {
	s := Stats{
		Transport: g.tr.Status().String(),
		Channels:  make([]ChannelStats, 0, len(g.channels)),
		Unrouted:  g.unrouted.Load(),
		HeldOff:   g.holdoff.Active(),
	}
	for _, ch := range g.channels {
		s.Channels = append(s.Channels, ch.Stats())
	}
	sort.Slice(s.Channels, func(i, j int) bool { return s.Channels[i].Name < s.Channels[j].Name })
	return s
}

// Events returns the gateway event bus
func (g *Gateway) Events() *EventBus {
	return g.events
}

// Router returns the topic router of the mp channels
func (g *Gateway) Router() *Router {
	return g.router
}
