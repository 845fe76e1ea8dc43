// Package memory provides an in-process soft IOC implementing pv.Client, plus a simulated
// waveform source.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/compose-network/pvgateway/x/pv"
)

type monitor struct {
	id int
	fn pv.MonitorFunc
}

type record struct {
	value    pv.Value
	puts     uint64
	monitors []monitor
}

// IOC is a set of named process variables held in memory.
// Monitors run synchronously on the writer's goroutine.
type IOC struct {
	mu      sync.RWMutex
	records map[string]*record
	nextID  int
	closed  bool
}

var _ pv.Client = (*IOC)(nil)

// NewIOC creates an IOC serving the given PV names, all initially unset
func NewIOC(names ...string) *IOC {
	ioc := &IOC{records: make(map[string]*record, len(names))}
	for _, n := range names {
		ioc.records[n] = &record{}
	}
	return ioc
}

// Add declares a PV with an initial value. Re-adding keeps existing monitors.
func (i *IOC) Add(name string, initial pv.Value) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if r, ok := i.records[name]; ok {
		r.value = clone(initial)
		return
	}
	i.records[name] = &record{value: clone(initial)}
}

// Monitor registers fn for updates of name. A PV holding a value delivers it immediately.
func (i *IOC) Monitor(ctx context.Context, name string, fn pv.MonitorFunc) (func(), error) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil, pv.ErrClosed
	}
	r, ok := i.records[name]
	if !ok {
		i.mu.Unlock()
		return nil, fmt.Errorf("monitor %s: %w", name, pv.ErrNotFound)
	}
	i.nextID++
	id := i.nextID
	r.monitors = append(r.monitors, monitor{id: id, fn: fn})
	current := r.value
	i.mu.Unlock()

	if current != nil {
		fn(current)
	}

	var once sync.Once
	return func() { once.Do(func() { i.unmonitor(name, id) }) }, nil
}

func (i *IOC) unmonitor(name string, id int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	r, ok := i.records[name]
	if !ok {
		return
	}
	for k, m := range r.monitors {
		if m.id == id {
			r.monitors = append(r.monitors[:k], r.monitors[k+1:]...)
			return
		}
	}
}

// Put stores v and notifies every monitor of name
func (i *IOC) Put(ctx context.Context, name string, v pv.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return pv.ErrClosed
	}
	r, ok := i.records[name]
	if !ok {
		i.mu.Unlock()
		return fmt.Errorf("put %s: %w", name, pv.ErrNotFound)
	}
	r.value = clone(v)
	r.puts++
	fns := make([]pv.MonitorFunc, len(r.monitors))
	for k, m := range r.monitors {
		fns[k] = m.fn
	}
	stored := r.value
	i.mu.Unlock()

	for _, fn := range fns {
		fn(stored)
	}
	return nil
}

// Get returns the current value of name
func (i *IOC) Get(name string) (pv.Value, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	r, ok := i.records[name]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", name, pv.ErrNotFound)
	}
	return r.value, nil
}

// Puts returns how many times name was written
func (i *IOC) Puts(name string) uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if r, ok := i.records[name]; ok {
		return r.puts
	}
	return 0
}

// Names lists the served PVs
func (i *IOC) Names() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	names := make([]string, 0, len(i.records))
	for n := range i.records {
		names = append(names, n)
	}
	return names
}

func (i *IOC) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.closed = true
	for _, r := range i.records {
		r.monitors = nil
	}
	return nil
}

func clone(v pv.Value) pv.Value {
	switch t := v.(type) {
	case []int32:
		return append([]int32(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
