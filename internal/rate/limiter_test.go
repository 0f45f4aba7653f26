package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter() (*MemoryLimiter, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemory()
	m.now = c.now
	return m, c
}

func TestAllowWithinWindow(t *testing.T) {
	m, c := newTestLimiter()
	p := PerMinute(2)

	ok, _ := m.Allow("1.2.3.4:comment", p)
	assert.True(t, ok)
	ok, _ = m.Allow("1.2.3.4:comment", p)
	assert.True(t, ok)
	ok, wait := m.Allow("1.2.3.4:comment", p)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	ok, _ = m.Allow("5.6.7.8:comment", p)
	assert.True(t, ok, "keys are independent")

	c.t = c.t.Add(time.Minute)
	ok, _ = m.Allow("1.2.3.4:comment", p)
	assert.True(t, ok, "window resets")
}

func TestDisabledPolicy(t *testing.T) {
	m, _ := newTestLimiter()
	for i := 0; i < 100; i++ {
		ok, _ := m.Allow("k", PerMinute(0))
		assert.True(t, ok)
	}
	assert.Empty(t, m.buckets)
}

func TestPrune(t *testing.T) {
	m, c := newTestLimiter()
	m.Allow("a", PerMinute(1))
	c.t = c.t.Add(30 * time.Second)
	m.Allow("b", PerMinute(1))
	c.t = c.t.Add(31 * time.Second)

	assert.Equal(t, 1, m.Prune())
	assert.Len(t, m.buckets, 1)
}
