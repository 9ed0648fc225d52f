// Package domaintest provides test doubles for the domain package.
package domaintest

import (
	"sync"
	"time"

	"github.com/technotrac/authcore/internal/domain"
)

// FakeClock is a deterministic, advanceable clock for tests.
// Stores that expire keys on their own time (miniredis) can follow it
// through OnAdvance, so token expiry and key TTLs move together.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	hooks   []func(time.Duration)
}

// NewFakeClock creates a FakeClock set to the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the fake clock's current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnAdvance registers fn to be called with the step after every Advance.
func (c *FakeClock) OnAdvance(fn func(time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Advance moves the clock forward by d and then runs the OnAdvance hooks
// in registration order. Negative steps panic.
func (c *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		panic("domaintest: FakeClock cannot move backwards")
	}
	c.mu.Lock()
	c.current = c.current.Add(d)
	hooks := append(([]func(time.Duration))(nil), c.hooks...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(d)
	}
}

// Set jumps the clock to t without running hooks.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

var _ domain.Clock = (*FakeClock)(nil)
