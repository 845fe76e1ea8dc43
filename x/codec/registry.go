package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/compose-network/pvgateway/x/wire"
)

// Datatype names understood by the default registry
const (
	TypeInt     = "int"
	TypeString  = "string"
	TypeWfInt1  = "wfint1"
	TypeWfInt   = "wfint"
	TypePBValue = "pbvalue"
)

// DefaultType is used when a channel does not name a datatype
const DefaultType = TypeString

// registry implements Registry interface
type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with all built-in datatypes
func NewRegistry() Registry {
	r := &registry{
		factories: make(map[string]Factory),
	}

	r.Register(TypeInt, NewIntConverter)
	r.Register(TypeString, NewStringConverter)
	r.Register(TypeWfInt1, NewTaggedConverter)
	r.Register(TypeWfInt, NewWaveformConverter)
	r.Register(TypePBValue, NewPBValueConverter)

	return r
}

// Register registers a factory with a name
func (r *registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New builds a converter for the named datatype
func (r *registry) New(name string, cfg wire.Config) (Converter, error) {
	if name == "" {
		name = DefaultType
	}

	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown datatype %q", name)
	}
	return factory(cfg)
}

// Names returns the registered datatype names in sorted order
func (r *registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
