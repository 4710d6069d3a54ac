package database

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/koustreak/racedb"

// Counter tracks the live physical connections of one backend. It is
// advisory: diagnostics read it, nothing synchronizes on it.
type Counter struct {
	driver Driver
	live   atomic.Int64
	inst   metric.Int64UpDownCounter
	attrs  metric.MeasurementOption
}

// Inc records a constructed connection. A nil Counter is a no-op.
func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.live.Add(1)
	if c.inst != nil {
		c.inst.Add(context.Background(), 1, c.attrs)
	}
}

// Dec records a destroyed connection. A nil Counter is a no-op.
func (c *Counter) Dec() {
	if c == nil {
		return
	}
	c.live.Add(-1)
	if c.inst != nil {
		c.inst.Add(context.Background(), -1, c.attrs)
	}
}

// Live returns the current count.
func (c *Counter) Live() int64 {
	if c == nil {
		return 0
	}
	return c.live.Load()
}

// Counters owns one Counter per backend. It is created once at startup and
// injected into every adapter instead of living in package state.
type Counters struct {
	mu       sync.Mutex
	inst     metric.Int64UpDownCounter
	byDriver map[Driver]*Counter
}

// NewCounters creates the counter set. A nil meter uses the global otel
// meter provider, which is a no-op unless the process installs one.
func NewCounters(meter metric.Meter) *Counters {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	inst, err := meter.Int64UpDownCounter(
		"racedb.connections.live",
		metric.WithDescription("Number of live physical database connections"),
	)
	if err != nil {
		inst = nil
	}
	return &Counters{inst: inst, byDriver: make(map[Driver]*Counter)}
}

// For returns the counter of driver d, creating it on first use.
func (c *Counters) For(d Driver) *Counter {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ctr, ok := c.byDriver[d]
	if !ok {
		ctr = &Counter{
			driver: d,
			inst:   c.inst,
			attrs:  metric.WithAttributes(attribute.String("driver", string(d))),
		}
		c.byDriver[d] = ctr
	}
	return ctr
}

// Snapshot returns the live count per backend.
func (c *Counters) Snapshot() map[Driver]int64 {
	out := make(map[Driver]int64)
	if c == nil {
		return out
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for d, ctr := range c.byDriver {
		out[d] = ctr.Live()
	}
	return out
}
