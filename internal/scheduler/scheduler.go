// Package scheduler holds the pool of arrived, unfinished jobs and decides
// which job an execution unit should run next.
//
// Four policies are provided: FCFS, RoundRobin, SJN and Hybrid (FCFS/SJN with
// a starvation threshold). All of them share the tick protocol:
//
//  1. Tick retires jobs dispatched since the previous Tick that have finished
//     and resets the per-tick dispatch bookkeeping.
//  2. One or more execution units call Next during the dispatch wave. A job is
//     never handed out twice in the same wave.
package scheduler

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/me/schedsim/internal/event"
	"github.com/me/schedsim/internal/job"
	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/pkg/model"
)

// Scheduler events.
const (
	EventJobArrived  event.Name = "job-arrived"
	EventJobFinished event.Name = "job-finished"
)

// Event is the payload of scheduler notifications.
type Event struct {
	Job       *job.Job
	Scheduler model.SchedulerKind
}

// Scheduler is a job scheduling policy.
type Scheduler interface {
	// Kind returns the policy identifier.
	Kind() model.SchedulerKind

	// Enqueue accepts an arriving job.
	Enqueue(j *job.Job)

	// Pending returns the number of arrived, not yet retired jobs.
	Pending() int

	// Tick retires finished jobs and prepares the next dispatch wave.
	Tick(delta time.Duration)

	// Next returns the job to run, or nil when no job is eligible.
	Next() *job.Job

	// On registers a handler for EventJobArrived or EventJobFinished.
	On(name event.Name, fn func(Event)) event.Handle

	// Off removes a handler.
	Off(name event.Name, h event.Handle)
}

// Options configures a scheduler.
type Options struct {
	Quantum             time.Duration // RoundRobin slice length
	StarvationThreshold time.Duration // Hybrid age after which FCFS ordering applies
	Logger              *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Quantum:             3 * time.Second,
		StarvationThreshold: 10 * time.Second,
	}
}

var registry = map[model.SchedulerKind]func(Options) Scheduler{
	model.SchedulerFCFS:       func(o Options) Scheduler { return NewFCFS(o) },
	model.SchedulerRoundRobin: func(o Options) Scheduler { return NewRoundRobin(o) },
	model.SchedulerSJN:        func(o Options) Scheduler { return NewSJN(o) },
	model.SchedulerHybrid:     func(o Options) Scheduler { return NewHybrid(o) },
}

// New returns the scheduler registered for kind.
func New(kind model.SchedulerKind, opts Options) (Scheduler, error) {
	ctor, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("no scheduler registered for kind %q", kind)
	}
	return ctor(opts), nil
}

// Kinds returns the registered policies in a stable order.
func Kinds() []model.SchedulerKind {
	kinds := make([]model.SchedulerKind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// base is the queue and dispatch bookkeeping shared by every policy.
type base struct {
	kind       model.SchedulerKind
	queue      []*job.Job
	dispatched []*job.Job // handed out since the last Tick
	events     event.Registry[Event]
	logger     *slog.Logger
}

func newBase(kind model.SchedulerKind, logger *slog.Logger) base {
	return base{
		kind:   kind,
		logger: logging.OrDiscard(logger).With("component", "scheduler", "policy", string(kind)),
	}
}

func (b *base) Kind() model.SchedulerKind { return b.kind }

func (b *base) Pending() int { return len(b.queue) }

func (b *base) On(name event.Name, fn func(Event)) event.Handle {
	return b.events.On(name, fn)
}

func (b *base) Off(name event.Name, h event.Handle) {
	b.events.Off(name, h)
}

// enqueue marks arrival, appends j and announces it.
func (b *base) enqueue(j *job.Job) {
	j.MarkArrival()
	b.queue = append(b.queue, j)
	b.logger.Debug("job arrived", "job_id", j.ID(), "execute", j.ExecuteTime(), "pending", len(b.queue))
	b.events.Fire(EventJobArrived, Event{Job: j, Scheduler: b.kind})
}

// dispatch records j as handed out in the current wave.
func (b *base) dispatch(j *job.Job) {
	b.dispatched = append(b.dispatched, j)
}

func (b *base) wasDispatched(j *job.Job) bool {
	return slices.Contains(b.dispatched, j)
}

// retire removes every dispatched job that has finished and clears the
// dispatch record. onRemove, if set, is called with the queue index of each
// job just before it is removed. It returns the number of retired jobs.
func (b *base) retire(onRemove func(idx int, j *job.Job)) int {
	retired := 0
	for _, j := range b.dispatched {
		if j.Status() != job.StatusFinished {
			continue
		}
		idx := slices.Index(b.queue, j)
		if idx < 0 {
			continue
		}
		if onRemove != nil {
			onRemove(idx, j)
		}
		b.queue = slices.Delete(b.queue, idx, idx+1)
		retired++
		b.logger.Debug("job retired", "job_id", j.ID(), "pending", len(b.queue))
		b.events.Fire(EventJobFinished, Event{Job: j, Scheduler: b.kind})
	}
	clear(b.dispatched)
	b.dispatched = b.dispatched[:0]
	return retired
}
