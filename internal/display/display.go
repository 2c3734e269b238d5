// Package display reports simulation progress: a status table of running
// jobs once per simulated second and the average latency at the end.
package display

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/me/schedsim/internal/event"
	"github.com/me/schedsim/internal/job"
	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/internal/producer"
	"github.com/me/schedsim/pkg/model"
)

// Display observes a job source and prints progress.
type Display interface {
	// Kind returns the display identifier.
	Kind() model.DisplayKind

	// Tick advances the status timer by delta.
	Tick(delta time.Duration)

	// Stats prints end-of-run statistics.
	Stats()

	// Close releases the output and reports the first write error, if any.
	Close() error
}

// Options configures a display.
type Options struct {
	// Writer is the console destination. Defaults to os.Stdout.
	Writer io.Writer

	// LogFile is the log-file destination, opened for append.
	LogFile string

	Logger *slog.Logger
}

// New returns the display registered for kind, subscribed to src.
func New(kind model.DisplayKind, src producer.Source, opts Options) (Display, error) {
	switch kind {
	case model.DisplayConsole:
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		return NewConsole(src, w, opts.Logger), nil
	case model.DisplayLogFile:
		if opts.LogFile == "" {
			return nil, fmt.Errorf("log-file display requires a log file")
		}
		return NewLogFile(src, opts.LogFile, opts.Logger)
	case model.DisplayNone:
		return newTracker(model.DisplayNone, src, io.Discard, opts.Logger), nil
	}
	return nil, fmt.Errorf("no display registered for kind %q", kind)
}

type row struct {
	id      uint64
	delay   time.Duration
	execute time.Duration
	service time.Duration
}

type tracked struct {
	started  event.Handle
	finished event.Handle
}

// Tracker follows jobs from creation to completion and writes the status
// table. Console and LogFile differ only in their destination.
type Tracker struct {
	kind    model.DisplayKind
	out     io.Writer
	closer  io.Closer
	err     error
	elapsed time.Duration

	waiting   map[uint64]row
	running   []row // service start order
	completed int
	latency   time.Duration
	handles   map[uint64]tracked

	logger *slog.Logger
}

func newTracker(kind model.DisplayKind, src producer.Source, out io.Writer, logger *slog.Logger) *Tracker {
	t := &Tracker{
		kind:    kind,
		out:     out,
		waiting: make(map[uint64]row),
		handles: make(map[uint64]tracked),
		logger:  logging.OrDiscard(logger).With("component", "display"),
	}
	src.On(producer.EventNewJob, t.onNewJob)
	return t
}

// NewConsole creates a display writing to w.
func NewConsole(src producer.Source, w io.Writer, logger *slog.Logger) *Tracker {
	return newTracker(model.DisplayConsole, src, w, logger)
}

// NewLogFile creates a display appending to path.
func NewLogFile(src producer.Source, path string, logger *slog.Logger) (*Tracker, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	t := newTracker(model.DisplayLogFile, src, f, logger)
	t.closer = f
	t.logger.Info("writing status to log file", "path", path)
	return t, nil
}

func (t *Tracker) Kind() model.DisplayKind { return t.kind }

// Waiting returns the number of created jobs that have not started.
func (t *Tracker) Waiting() int { return len(t.waiting) }

// Running returns the number of started, unfinished jobs.
func (t *Tracker) Running() int { return len(t.running) }

// Completed returns the number of finished jobs.
func (t *Tracker) Completed() int { return t.completed }

// AverageLatency returns the mean total time of finished jobs.
func (t *Tracker) AverageLatency() (time.Duration, bool) {
	if t.completed == 0 {
		return 0, false
	}
	return t.latency / time.Duration(t.completed), true
}

func (t *Tracker) onNewJob(j *job.Job) {
	t.waiting[j.ID()] = row{id: j.ID(), delay: j.Delay(), execute: j.ExecuteTime()}
	t.handles[j.ID()] = tracked{
		started:  j.On(job.EventStarted, t.onStarted),
		finished: j.On(job.EventFinished, t.onFinished),
	}
}

func (t *Tracker) onStarted(j *job.Job) {
	r, ok := t.waiting[j.ID()]
	if !ok {
		return
	}
	delete(t.waiting, j.ID())
	r.service, _ = j.ServiceTime()
	t.running = append(t.running, r)
}

func (t *Tracker) onFinished(j *job.Job) {
	delete(t.waiting, j.ID())
	t.running = slices.DeleteFunc(t.running, func(r row) bool { return r.id == j.ID() })
	t.completed++
	if total, ok := j.TotalTime(); ok {
		t.latency += total
	}
	if h, ok := t.handles[j.ID()]; ok {
		j.Off(job.EventStarted, h.started)
		j.Off(job.EventFinished, h.finished)
		delete(t.handles, j.ID())
	}
}

// Tick prints the status table once per simulated second.
func (t *Tracker) Tick(delta time.Duration) {
	t.elapsed += delta
	if t.elapsed < time.Second {
		return
	}
	t.elapsed = 0
	t.printStatus()
}

func (t *Tracker) printStatus() {
	t.printf("%d jobs waiting in queue, %d finished\n", len(t.waiting), t.completed)
	t.printf("Job #   | Arrival Time | Execute Time | Service Time\n")
	for _, r := range t.running {
		t.printf("Job %-3d | %12.2f | %12.2f | %12.2f\n",
			r.id, r.delay.Seconds(), r.execute.Seconds(), r.service.Seconds())
	}
	t.printf("\n")
}

func (t *Tracker) Stats() {
	avg, ok := t.AverageLatency()
	if !ok {
		t.printf("No jobs completed\n")
		return
	}
	t.printf("Averaged latency: %.2f\n", avg.Seconds())
}

func (t *Tracker) Close() error {
	if t.closer != nil {
		if err := t.closer.Close(); err != nil && t.err == nil {
			t.err = err
		}
		t.closer = nil
	}
	return t.err
}

func (t *Tracker) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	if _, err := fmt.Fprintf(t.out, format, args...); err != nil {
		t.err = err
		t.logger.Error("display write failed", "error", err)
	}
}
