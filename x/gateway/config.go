package gateway

import (
	"strings"
	"time"

	"github.com/compose-network/pvgateway/x/wire"
)

// Direction selects which way a channel moves data
type Direction string

const (
	// DirectionPM forwards PV updates to the transport
	DirectionPM Direction = "pm"
	// DirectionMP writes transport messages to the PV
	DirectionMP Direction = "mp"
)

// ChannelConfig binds one PV to one transport topic
type ChannelConfig struct {
	Name      string    `mapstructure:"name"      yaml:"name,omitempty"`
	PV        string    `mapstructure:"pv"        yaml:"pv"`
	Topic     string    `mapstructure:"topic"     yaml:"topic"`
	DataType  string    `mapstructure:"datatype"  yaml:"datatype,omitempty"`
	Direction Direction `mapstructure:"direction" yaml:"direction"`
	QoS       byte      `mapstructure:"qos"       yaml:"qos"`
	Retain    bool      `mapstructure:"retain"    yaml:"retain"`
	// Wire overrides the gateway wire settings field by field; zero fields inherit.
	Wire wire.Config `mapstructure:"wire" yaml:"wire,omitempty"`
	// PublishDelay paces segments of one waveform; zero inherits, negative disables.
	PublishDelay time.Duration `mapstructure:"publish_delay" yaml:"publish_delay,omitempty"`
	QueueSize    int           `mapstructure:"queue_size"    yaml:"queue_size,omitempty"`
}

// Config holds gateway-wide settings and the channel list
type Config struct {
	Holdoff      time.Duration   `mapstructure:"holdoff"       yaml:"holdoff"`
	QueueSize    int             `mapstructure:"queue_size"    yaml:"queue_size"`
	PublishDelay time.Duration   `mapstructure:"publish_delay" yaml:"publish_delay"`
	Wire         wire.Config     `mapstructure:"wire"          yaml:"wire"`
	Channels     []ChannelConfig `mapstructure:"channels"      yaml:"channels"`
}

// DefaultConfig returns the gateway defaults
func DefaultConfig() Config {
	return Config{
		Holdoff:      10 * time.Second,
		QueueSize:    16,
		PublishDelay: 70 * time.Millisecond,
		Wire:         wire.DefaultConfig(),
	}
}

// resolve fills channel fields left empty from the gateway settings
func (c ChannelConfig) resolve(g Config) ChannelConfig {
	if c.Name == "" {
		c.Name = c.PV
	}
	if c.Wire.SegmentCapacity == 0 {
		c.Wire.SegmentCapacity = g.Wire.SegmentCapacity
	}
	if c.Wire.IndexDigits == 0 {
		c.Wire.IndexDigits = g.Wire.IndexDigits
	}
	if c.Wire.DropDistance == 0 {
		c.Wire.DropDistance = g.Wire.DropDistance
	}
	switch {
	case c.PublishDelay == 0:
		c.PublishDelay = g.PublishDelay
	case c.PublishDelay < 0:
		c.PublishDelay = 0
	}
	if c.QueueSize == 0 {
		c.QueueSize = g.QueueSize
	}
	c.Direction = Direction(strings.ToLower(string(c.Direction)))
	return c
}

// Validate checks a resolved channel
func (c ChannelConfig) Validate() error {
	if c.PV == "" {
		return wire.NewConfigError("channel %q: pv is required", c.Name)
	}
	if c.Topic == "" {
		return wire.NewConfigError("channel %q: topic is required", c.Name)
	}
	if strings.ContainsAny(c.Topic, "+#") {
		return wire.NewConfigError("channel %q: topic %q must not contain wildcards", c.Name, c.Topic)
	}
	if c.Direction != DirectionPM && c.Direction != DirectionMP {
		return wire.NewConfigError("channel %q: direction must be %q or %q, got %q",
			c.Name, DirectionPM, DirectionMP, c.Direction)
	}
	if c.QoS > 2 {
		return wire.NewConfigError("channel %q: qos must be 0, 1 or 2, got %d", c.Name, c.QoS)
	}
	if c.QueueSize < 1 {
		return wire.NewConfigError("channel %q: queue size must be positive, got %d", c.Name, c.QueueSize)
	}
	if err := c.Wire.Validate(); err != nil {
		return wire.NewConfigError("channel %q: invalid wire settings", c.Name).WithCause(err)
	}
	return nil
}

// Validate checks gateway settings and every channel
func (c Config) Validate() error {
	if c.Holdoff < 0 {
		return wire.NewConfigError("holdoff must not be negative, got %s", c.Holdoff)
	}
	if c.QueueSize < 1 {
		return wire.NewConfigError("queue size must be positive, got %d", c.QueueSize)
	}

	names := make(map[string]struct{}, len(c.Channels))
	for _, ch := range c.Channels {
		ch = ch.resolve(c)
		if err := ch.Validate(); err != nil {
			return err
		}
		if _, dup := names[ch.Name]; dup {
			return wire.NewConfigError("duplicate channel name %q", ch.Name)
		}
		names[ch.Name] = struct{}{}
	}
	return nil
}
