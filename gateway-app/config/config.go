package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	apisrv "github.com/compose-network/pvgateway/server/api"
	"github.com/compose-network/pvgateway/x/codec"
	"github.com/compose-network/pvgateway/x/gateway"
	pvmemory "github.com/compose-network/pvgateway/x/pv/memory"
	"github.com/compose-network/pvgateway/x/transport"
	"github.com/compose-network/pvgateway/x/wire"
)

// Config holds the complete application configuration
type Config struct {
	Transport transport.Config           `mapstructure:"transport" yaml:"transport"`
	PV        PVConfig                   `mapstructure:"pv"        yaml:"pv"`
	Wire      wire.Config                `mapstructure:"wire"      yaml:"wire"`
	Gateway   GatewayConfig              `mapstructure:"gateway"   yaml:"gateway"`
	Channels  []gateway.ChannelConfig    `mapstructure:"channels"  yaml:"channels"`
	API       apisrv.Config              `mapstructure:"api"       yaml:"api"`
	Metrics   MetricsConfig              `mapstructure:"metrics"   yaml:"metrics"`
	Log       LogConfig                  `mapstructure:"log"       yaml:"log"`
	Simulate  []pvmemory.GeneratorConfig `mapstructure:"simulate"  yaml:"simulate,omitempty"`
}

// PVConfig selects the process-variable client
type PVConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind"`
	// Names are served by the in-memory IOC in addition to every PV named by a channel.
	Names []string `mapstructure:"names" yaml:"names,omitempty"`
}

// GatewayConfig holds settings applied to every channel
type GatewayConfig struct {
	Holdoff      time.Duration `mapstructure:"holdoff"       yaml:"holdoff"`
	QueueSize    int           `mapstructure:"queue_size"    yaml:"queue_size"`
	PublishDelay time.Duration `mapstructure:"publish_delay" yaml:"publish_delay"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
	File   string `mapstructure:"file"   yaml:"file"`
}

// PVKindMemory serves PVs from an in-process soft IOC
const PVKindMemory = "memory"

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PVGW")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("transport.kind", transport.KindMQTT)
	v.SetDefault("transport.url", "tcp://localhost:1883")
	v.SetDefault("transport.max_payload", 256*1024)
	v.SetDefault("transport.subscribe_qos", 0)
	v.SetDefault("transport.connect_timeout", "10s")
	v.SetDefault("transport.reconnect_wait", "2s")

	v.SetDefault("pv.kind", PVKindMemory)

	v.SetDefault("wire.segment_size_max", 1208)
	v.SetDefault("wire.segment_index_digits", 3)
	v.SetDefault("wire.waveform_queue_size", 2)

	v.SetDefault("gateway.holdoff", "10s")
	v.SetDefault("gateway.queue_size", 16)
	v.SetDefault("gateway.publish_delay", "70ms")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.read_header_timeout", "5s")
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.idle_timeout", "120s")
	v.SetDefault("api.max_header_bytes", 1048576)
	v.SetDefault("api.cors", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
}

// GatewayConfig assembles the gateway settings from the wire, gateway and channels sections
func (c *Config) GatewayConfig() gateway.Config {
	return gateway.Config{
		Holdoff:      c.Gateway.Holdoff,
		QueueSize:    c.Gateway.QueueSize,
		PublishDelay: c.Gateway.PublishDelay,
		Wire:         c.Wire,
		Channels:     c.Channels,
	}
}

// PVNames lists every PV the in-memory IOC must serve
func (c *Config) PVNames() []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(n string) {
		if _, ok := seen[n]; ok || n == "" {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for _, n := range c.PV.Names {
		add(n)
	}
	for _, ch := range c.Channels {
		add(ch.PV)
	}
	for _, s := range c.Simulate {
		add(s.PV)
	}
	return names
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validatePV(); err != nil {
		return err
	}
	if err := c.Wire.Validate(); err != nil {
		return fmt.Errorf("wire: %w", err)
	}
	if err := c.GatewayConfig().Validate(); err != nil {
		return err
	}
	if err := c.validateSegments(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateLog(); err != nil {
		return err
	}
	return c.validateSimulate()
}

func (c *Config) validateTransport() error {
	switch c.Transport.Kind {
	case transport.KindMQTT, transport.KindNATS:
		if strings.TrimSpace(c.Transport.URL) == "" {
			return fmt.Errorf("transport.url is required for %s", c.Transport.Kind)
		}
	case transport.KindMemory:
	default:
		return fmt.Errorf("transport.kind must be one of mqtt, nats, memory, got %q", c.Transport.Kind)
	}
	if c.Transport.MaxPayload <= 0 {
		return fmt.Errorf("transport.max_payload must be positive, got %d", c.Transport.MaxPayload)
	}
	if c.Transport.SubscribeQoS > 2 {
		return fmt.Errorf("transport.subscribe_qos must be 0, 1 or 2, got %d", c.Transport.SubscribeQoS)
	}
	return nil
}

func (c *Config) validatePV() error {
	if c.PV.Kind != PVKindMemory {
		return fmt.Errorf("pv.kind %q is not supported (available: %s)", c.PV.Kind, PVKindMemory)
	}
	return nil
}

// validateSegments rejects waveform channels whose segments cannot fit in one transport message
func (c *Config) validateSegments() error {
	for _, ch := range c.Channels {
		if ch.DataType != codec.TypeWfInt {
			continue
		}
		capacity := ch.Wire.SegmentCapacity
		if capacity == 0 {
			capacity = c.Wire.SegmentCapacity
		}
		if capacity > c.Transport.MaxPayload {
			return fmt.Errorf("channel %q: segment size %d exceeds transport.max_payload %d",
				ch.PV, capacity, c.Transport.MaxPayload)
		}
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Enabled && strings.TrimSpace(c.API.ListenAddr) == "" {
		return fmt.Errorf("api.listen_addr is required when api is enabled")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}

func (c *Config) validateLog() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c *Config) validateSimulate() error {
	for i, s := range c.Simulate {
		if strings.TrimSpace(s.PV) == "" {
			return fmt.Errorf("simulate[%d].pv is required", i)
		}
		if s.Elements <= 0 {
			return fmt.Errorf("simulate[%d].elements must be positive", i)
		}
		if s.Period <= 0 {
			return fmt.Errorf("simulate[%d].period must be positive", i)
		}
	}
	return nil
}

// Default returns default configuration
func Default() *Config {
	gw := gateway.DefaultConfig()
	return &Config{
		Transport: transport.DefaultConfig(),
		PV:        PVConfig{Kind: PVKindMemory},
		Wire:      wire.DefaultConfig(),
		Gateway: GatewayConfig{
			Holdoff:      gw.Holdoff,
			QueueSize:    gw.QueueSize,
			PublishDelay: gw.PublishDelay,
		},
		API: apisrv.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
