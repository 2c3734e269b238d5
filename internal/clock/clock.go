// Package clock provides the time sources a simulation runs on.
//
// All simulated timestamps come from a single Clock so that job timings,
// queue ages and tick deltas share one timeline.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Time
}

// Dilated is a wall clock whose elapsed time since creation is scaled by a
// constant factor. A factor of 2 makes simulated time pass twice as fast.
type Dilated struct {
	start  time.Time
	factor float64
	now    func() time.Time
}

// NewDilated returns a dilated wall clock starting now.
// factor must be greater than zero.
func NewDilated(factor float64) (*Dilated, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("dilation factor must be > 0, got %v", factor)
	}
	return &Dilated{start: time.Now(), factor: factor, now: time.Now}, nil
}

// Now returns start + (real elapsed × factor).
func (d *Dilated) Now() time.Time {
	elapsed := d.now().Sub(d.start)
	return d.start.Add(time.Duration(float64(elapsed) * d.factor))
}

// Factor returns the dilation factor.
func (d *Dilated) Factor() float64 { return d.factor }

// Manual is a clock that only moves when Advance is called.
// It is used for virtual (as fast as possible) runs and in tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a manual clock set to start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d. Negative values are ignored.
func (m *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Stepped follows a source clock in discrete steps. Now stays pinned at the
// last step until Advance moves it, so everything stamped within one step
// shares a single instant.
type Stepped struct {
	Manual
	source Clock
}

// NewStepped returns a stepped view of source pinned at source's current time.
func NewStepped(source Clock) *Stepped {
	return &Stepped{Manual: Manual{now: source.Now()}, source: source}
}

// Source returns the clock the view follows.
func (s *Stepped) Source() Clock { return s.source }
