// Package producer creates jobs and releases them into a scheduler on a
// delay schedule.
package producer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/event"
	"github.com/me/schedsim/internal/job"
	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

// EventNewJob fires once per job at creation, before it is released.
const EventNewJob event.Name = "new-job"

// Source is a job producer.
type Source interface {
	// Kind returns the producer identifier.
	Kind() model.ProducerKind

	// Produce creates the full job set. It is called once before the first Tick.
	Produce() error

	// Tick advances the release clock and enqueues every job whose delay has passed.
	Tick(delta time.Duration)

	// Count returns the number of jobs not yet released.
	Count() int

	// On registers a handler for EventNewJob.
	On(name event.Name, fn func(*job.Job)) event.Handle

	// Off removes a handler.
	Off(name event.Name, h event.Handle)
}

// Options configures a Source.
type Options struct {
	// Random producer.
	Count   int
	MinTime time.Duration
	MaxTime time.Duration
	Seed    uint64 // 0 picks a time-based seed

	// Batch file producer.
	JobsFile string

	Logger *slog.Logger
}

// New returns the producer registered for kind, releasing into sched.
func New(kind model.ProducerKind, sched scheduler.Scheduler, clk clock.Clock, opts Options) (Source, error) {
	switch kind {
	case model.ProducerRandom:
		return NewRandom(sched, clk, opts), nil
	case model.ProducerBatchFile:
		if opts.JobsFile == "" {
			return nil, fmt.Errorf("batch-file producer requires a jobs file")
		}
		return NewBatchFile(sched, clk, opts), nil
	}
	return nil, fmt.Errorf("no producer registered for kind %q", kind)
}

type pending struct {
	delay time.Duration
	job   *job.Job
}

// base holds the release queue shared by every producer.
type base struct {
	kind    model.ProducerKind
	sched   scheduler.Scheduler
	clock   clock.Clock
	seq     *job.Sequence
	queue   []pending // ascending by delay
	elapsed time.Duration
	events  event.Registry[*job.Job]
	logger  *slog.Logger
}

func newBase(kind model.ProducerKind, sched scheduler.Scheduler, clk clock.Clock, logger *slog.Logger) base {
	return base{
		kind:   kind,
		sched:  sched,
		clock:  clk,
		seq:    job.NewSequence(0),
		logger: logging.OrDiscard(logger).With("component", "producer", "producer", string(kind)),
	}
}

func (b *base) Kind() model.ProducerKind { return b.kind }

func (b *base) Count() int { return len(b.queue) }

func (b *base) On(name event.Name, fn func(*job.Job)) event.Handle {
	return b.events.On(name, fn)
}

func (b *base) Off(name event.Name, h event.Handle) {
	b.events.Off(name, h)
}

// create builds a job, announces it and appends it to the release queue.
func (b *base) create(executeTime, delay time.Duration) *job.Job {
	j := b.seq.New(executeTime, delay, b.clock)
	b.events.Fire(EventNewJob, j)
	b.queue = append(b.queue, pending{delay: delay, job: j})
	return j
}

func (b *base) Tick(delta time.Duration) {
	if len(b.queue) == 0 {
		return
	}
	b.elapsed += delta
	for len(b.queue) > 0 {
		head := b.queue[0]
		if head.delay > b.elapsed {
			break
		}
		b.queue[0] = pending{}
		b.queue = b.queue[1:]
		b.logger.Debug("job released", "job_id", head.job.ID(), "delay", head.delay)
		b.sched.Enqueue(head.job)
	}
}
