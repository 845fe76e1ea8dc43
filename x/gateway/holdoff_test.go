package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestHoldoff_Window(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	h := NewHoldoff(10*time.Second, clock.Now)

	assert.True(t, h.Allowed("ioc:VEPP3"))

	h.Fail("ioc:VEPP3")
	assert.False(t, h.Allowed("ioc:VEPP3"))
	assert.True(t, h.Allowed("broker:VEPP3"))

	clock.Advance(10 * time.Second)
	assert.False(t, h.Allowed("ioc:VEPP3"))
	assert.Contains(t, h.Active(), "ioc:VEPP3")

	clock.Advance(time.Millisecond)
	assert.True(t, h.Allowed("ioc:VEPP3"))
	assert.Empty(t, h.Active())
}

func TestHoldoff_FailRestartsWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	h := NewHoldoff(10*time.Second, clock.Now)

	h.Fail("broker:VEPP3")
	clock.Advance(8 * time.Second)
	h.Fail("broker:VEPP3")
	clock.Advance(8 * time.Second)

	assert.False(t, h.Allowed("broker:VEPP3"))
	assert.Equal(t, clock.Now().Add(2*time.Second), h.Active()["broker:VEPP3"])
}

func TestEndpoints(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ioc:VEPP3", IOCEndpoint("VEPP3_wf_x"))
	assert.Equal(t, "ioc:VEPP3:wf", IOCEndpoint("VEPP3:wf"))
	assert.Equal(t, "broker:VEPP3", BrokerEndpoint("VEPP3/wf/001"))
	assert.Equal(t, "broker:plain", BrokerEndpoint("plain"))
}
