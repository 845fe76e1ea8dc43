package gateway

import (
	"strings"
	"sync"
	"time"
)

// Holdoff tracks endpoints that recently failed. Work touching a held-off endpoint is
// skipped until the window since its last failure has passed.
type Holdoff struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	failed map[string]time.Time
}

// NewHoldoff creates a tracker; now defaults to time.Now
func NewHoldoff(window time.Duration, now func() time.Time) *Holdoff {
	if now == nil {
		now = time.Now
	}
	return &Holdoff{
		window: window,
		now:    now,
		failed: make(map[string]time.Time),
	}
}

// Fail starts (or restarts) the hold-off window of endpoint
func (h *Holdoff) Fail(endpoint string) {
	h.mu.Lock()
	h.failed[endpoint] = h.now()
	h.mu.Unlock()
}

// Allowed reports whether endpoint may be used now
func (h *Holdoff) Allowed(endpoint string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	at, ok := h.failed[endpoint]
	if !ok {
		return true
	}
	if h.now().Sub(at) > h.window {
		delete(h.failed, endpoint)
		return true
	}
	return false
}

// Active returns the endpoints currently held off and when each becomes usable again
func (h *Holdoff) Active() map[string]time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	out := make(map[string]time.Time, len(h.failed))
	for ep, at := range h.failed {
		if now.Sub(at) <= h.window {
			out[ep] = at.Add(h.window)
		}
	}
	return out
}

// IOCEndpoint names the IOC serving pv: the part of the name before the first '_'
func IOCEndpoint(pv string) string {
	name, _, _ := strings.Cut(pv, "_")
	return "ioc:" + name
}

// BrokerEndpoint names the broker side of topic: its first level
func BrokerEndpoint(topic string) string {
	name, _, _ := strings.Cut(topic, "/")
	return "broker:" + name
}
