// Package transport defines the publish/subscribe transport used by the gateway.
// Topics use MQTT syntax: '/' separated levels, '+' matches one level and a trailing '#'
// matches any number of levels.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status represents the state of a transport connection
type Status int

// Possible connection statuses
const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected    = errors.New("transport not connected")
	ErrClosed          = errors.New("transport closed")
	ErrPayloadTooLarge = errors.New("payload exceeds transport limit")
)

// Handler receives one message delivered on a subscription
type Handler func(ctx context.Context, topic string, payload []byte)

// PublishOptions carries per-message delivery settings. Transports without the concept
// ignore them.
type PublishOptions struct {
	QoS    byte
	Retain bool
}

// Transport is a best-effort publish/subscribe client
type Transport interface {
	Connect(ctx context.Context) error
	// Publish sends one message; it blocks until the transport accepted it or ctx is done.
	Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error
	Subscribe(ctx context.Context, filter string, handler Handler) error
	// MaxPayload is the largest payload Publish accepts.
	MaxPayload() int
	Status() Status
	Close(ctx context.Context) error
}

// Config holds settings shared by all transport implementations
type Config struct {
	Kind           string        `mapstructure:"kind"            yaml:"kind"`
	URL            string        `mapstructure:"url"             yaml:"url"`
	ClientID       string        `mapstructure:"client_id"       yaml:"client_id"`
	Username       string        `mapstructure:"username"        yaml:"username"`
	Password       string        `mapstructure:"password"        yaml:"password"`
	MaxPayload     int           `mapstructure:"max_payload"     yaml:"max_payload"`
	SubscribeQoS   byte          `mapstructure:"subscribe_qos"   yaml:"subscribe_qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"  yaml:"reconnect_wait"`
}

// Transport kinds
const (
	KindMQTT   = "mqtt"
	KindNATS   = "nats"
	KindMemory = "memory"
)

// DefaultConfig returns defaults for a local MQTT broker
func DefaultConfig() Config {
	return Config{
		Kind:           KindMQTT,
		URL:            "tcp://localhost:1883",
		MaxPayload:     256 * 1024,
		ConnectTimeout: 10 * time.Second,
		ReconnectWait:  2 * time.Second,
	}
}

// CheckPayload rejects payloads above limit before any I/O happens
func CheckPayload(payload []byte, limit int) error {
	if limit > 0 && len(payload) > limit {
		return fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(payload), limit)
	}
	return nil
}
