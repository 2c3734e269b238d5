// Package sim drives a simulation: it wires a source, a scheduler, an
// execution unit and a display together and advances them in lockstep.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/display"
	"github.com/me/schedsim/internal/executor"
	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/internal/producer"
	"github.com/me/schedsim/internal/scheduler"
)

// ErrBudgetExceeded is returned when the simulated time budget runs out
// before every job has finished.
var ErrBudgetExceeded = errors.New("simulation time budget exceeded")

// Config holds loop configuration.
type Config struct {
	// PollInterval is the wall-clock tick period of Run.
	PollInterval time.Duration

	// MaxSimulated bounds RunVirtual. Zero means unbounded.
	MaxSimulated time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PollInterval: 10 * time.Millisecond}
}

// advancer is a clock that can be moved forward by hand.
type advancer interface {
	clock.Clock
	Advance(d time.Duration)
}

// Loop advances one simulation. Each iteration ticks the source, the
// scheduler, the execution unit and the display, in that order, with the
// time elapsed since the previous iteration.
type Loop struct {
	clock   clock.Clock
	source  producer.Source
	sched   scheduler.Scheduler
	unit    executor.Unit
	display display.Display
	config  Config
	logger  *slog.Logger

	// advance moves a manual clock forward between scheduling and execution,
	// so arrivals are stamped at the start of a step and work at its end.
	advance func(time.Duration)

	progress  rate.Sometimes
	simulated time.Duration
	ticks     int

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// ErrLoopStarted is returned when Run or RunVirtual is called on a loop that
// has already been driven.
var ErrLoopStarted = errors.New("simulation loop already started")

// NewLoop creates a loop. disp may be nil.
func NewLoop(clk clock.Clock, src producer.Source, sched scheduler.Scheduler, unit executor.Unit,
	disp display.Display, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		clock:    clk,
		source:   src,
		sched:    sched,
		unit:     unit,
		display:  disp,
		config:   cfg,
		logger:   logging.OrDiscard(logger).With("component", "sim"),
		progress: rate.Sometimes{Interval: time.Second},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Done reports whether every job has been released and retired.
func (l *Loop) Done() bool {
	return l.sched.Pending() == 0 && l.source.Count() == 0
}

// Simulated returns the total simulated time ticked so far.
func (l *Loop) Simulated() time.Duration { return l.simulated }

// Ticks returns the number of iterations run so far.
func (l *Loop) Ticks() int { return l.ticks }

// Run drives the loop from the wall clock until every job is done, ctx is
// cancelled or Stop is called. A ctx deadline is reported as
// ErrBudgetExceeded.
//
// When the loop's clock is a *clock.Stepped, deltas are sampled from its
// source and the view is advanced between scheduling and execution, as in
// RunVirtual. Jobs released during a step are then never credited with
// time that passed before they arrived.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.begin(); err != nil {
		return err
	}
	defer close(l.doneCh)

	sampler := l.clock
	if st, ok := l.clock.(*clock.Stepped); ok {
		sampler = st.Source()
		l.advance = st.Advance
		defer func() { l.advance = nil }()
	}

	l.logger.Info("simulation started", "poll_interval", l.config.PollInterval)
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	last := sampler.Now()
	if l.advance != nil {
		l.advance(last.Sub(l.clock.Now()))
	}
	for !l.Done() {
		select {
		case <-ctx.Done():
			return l.interrupted(ctx)
		case <-l.stopCh:
			l.logger.Info("simulation stopping (stop called)")
			return nil
		case <-ticker.C:
			now := sampler.Now()
			delta := now.Sub(last)
			last = now
			l.Tick(delta)
		}
	}
	l.finished()
	return nil
}

// RunVirtual drives the loop without waiting, advancing the clock by step
// per iteration. The loop's clock must support Advance.
func (l *Loop) RunVirtual(ctx context.Context, step time.Duration) error {
	if err := l.begin(); err != nil {
		return err
	}
	defer close(l.doneCh)

	adv, ok := l.clock.(advancer)
	if !ok {
		return fmt.Errorf("virtual run needs a manual clock, got %T", l.clock)
	}
	if step <= 0 {
		return fmt.Errorf("virtual step must be positive, got %v", step)
	}
	l.advance = adv.Advance
	defer func() { l.advance = nil }()

	l.logger.Info("simulation started", "step", step, "max_simulated", l.config.MaxSimulated)
	for !l.Done() {
		if err := ctx.Err(); err != nil {
			return l.interrupted(ctx)
		}
		select {
		case <-l.stopCh:
			l.logger.Info("simulation stopping (stop called)")
			return nil
		default:
		}
		if l.config.MaxSimulated > 0 && l.simulated >= l.config.MaxSimulated {
			return l.budgetExceeded()
		}
		l.Tick(step)
	}
	l.finished()
	return nil
}

// Stop asks the loop to return and waits for it if it is running. A loop
// stopped before it starts returns as soon as it is run.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()
	if started {
		<-l.doneCh
	}
}

func (l *Loop) begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return ErrLoopStarted
	}
	l.started = true
	return nil
}

// Tick runs a single iteration covering delta of simulated time.
func (l *Loop) Tick(delta time.Duration) {
	l.source.Tick(delta)
	l.sched.Tick(delta)
	if l.advance != nil {
		l.advance(delta)
	}
	l.unit.Tick(delta)
	if l.display != nil {
		l.display.Tick(delta)
	}

	l.simulated += delta
	l.ticks++
	l.progress.Do(func() {
		l.logger.Debug("simulation progress",
			"simulated", l.simulated,
			"ticks", l.ticks,
			"pending", l.sched.Pending(),
			"unreleased", l.source.Count(),
		)
	})
}

func (l *Loop) interrupted(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return l.budgetExceeded()
	}
	l.logger.Info("simulation stopping (context cancelled)")
	return ctx.Err()
}

func (l *Loop) budgetExceeded() error {
	l.logger.Warn("simulation budget exceeded",
		"simulated", l.simulated,
		"pending", l.sched.Pending(),
		"unreleased", l.source.Count(),
	)
	return fmt.Errorf("%w after %v simulated (%d pending, %d unreleased)",
		ErrBudgetExceeded, l.simulated, l.sched.Pending(), l.source.Count())
}

func (l *Loop) finished() {
	l.logger.Info("simulation finished", "simulated", l.simulated, "ticks", l.ticks)
}
