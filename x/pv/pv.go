// Package pv defines the process-variable side of the gateway: the client interface
// through which values are monitored and written, and the value conversions shared by
// the converters.
package pv

import (
	"context"
	"errors"
)

// Value is a process-variable value: int32, float64, bool, string, []byte or []int32.
type Value = any

// MonitorFunc receives every update of a monitored process variable
type MonitorFunc func(Value)

// Client is the control-system binding used by the gateway
type Client interface {
	// Monitor calls fn on every update of name until the returned cancel func is called.
	Monitor(ctx context.Context, name string, fn MonitorFunc) (cancel func(), err error)
	// Put writes v to name.
	Put(ctx context.Context, name string, v Value) error
	Close() error
}

var (
	ErrNotFound = errors.New("process variable not found")
	ErrClosed   = errors.New("process variable client closed")
)
