package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNoRoute is returned when no channel is registered for a topic
var ErrNoRoute = errors.New("no channel for topic")

// RouteFunc handles a message routed to a channel
type RouteFunc func(ctx context.Context, topic string, payload []byte)

// Router dispatches received messages to the channel registered for the longest
// matching topic prefix. A prefix matches the topic itself and any topic below it.
type Router struct {
	mu     sync.RWMutex
	routes map[string]RouteFunc
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{routes: make(map[string]RouteFunc)}
}

// Register adds a route for prefix
func (r *Router) Register(prefix string, fn RouteFunc) error {
	prefix = strings.TrimSuffix(prefix, "/")

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.routes[prefix]; exists {
		return fmt.Errorf("topic %q already routed", prefix)
	}
	r.routes[prefix] = fn
	return nil
}

// Unregister removes the route for prefix
func (r *Router) Unregister(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, strings.TrimSuffix(prefix, "/"))
}

// Lookup returns the route for topic and the prefix it matched
func (r *Router) Lookup(topic string) (RouteFunc, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidate := topic
	for {
		if fn, ok := r.routes[candidate]; ok {
			return fn, candidate, true
		}
		i := strings.LastIndexByte(candidate, '/')
		if i < 0 {
			return nil, "", false
		}
		candidate = candidate[:i]
	}
}

// Route dispatches one message
func (r *Router) Route(ctx context.Context, topic string, payload []byte) error {
	fn, _, ok := r.Lookup(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRoute, topic)
	}
	fn(ctx, topic, payload)
	return nil
}

// Prefixes returns the registered prefixes in sorted order
func (r *Router) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.routes))
	for p := range r.routes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
