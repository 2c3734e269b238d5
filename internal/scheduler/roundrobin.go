package scheduler

import (
	"time"

	"github.com/me/schedsim/internal/job"
	"github.com/me/schedsim/pkg/model"
)

// RoundRobin gives each job up to one quantum of time before rotating to
// the next one.
//
// State:
//   - cursor: queue index of the first job of the current slice; persists
//     across ticks.
//   - offset: distance from cursor of the next job to hand out in the
//     current wave; reset every tick.
//   - elapsed: time accumulated toward the quantum.
//   - served: distinct jobs dispatched since the last rotation.
//
// At a rotation the cursor moves past every served job still queued, so
// unfinished jobs go to the back of the line instead of being removed.
type RoundRobin struct {
	base
	quantum time.Duration
	elapsed time.Duration
	cursor  int
	offset  int
	served  map[*job.Job]struct{}
}

// NewRoundRobin creates a round-robin scheduler.
func NewRoundRobin(opts Options) *RoundRobin {
	quantum := opts.Quantum
	if quantum <= 0 {
		quantum = DefaultOptions().Quantum
	}
	return &RoundRobin{
		base:    newBase(model.SchedulerRoundRobin, opts.Logger),
		quantum: quantum,
		served:  make(map[*job.Job]struct{}),
	}
}

// Quantum returns the slice length.
func (s *RoundRobin) Quantum() time.Duration { return s.quantum }

// Cursor returns the queue index the next wave starts from.
func (s *RoundRobin) Cursor() int { return s.cursor }

// Enqueue appends j to the end of the rotation.
func (s *RoundRobin) Enqueue(j *job.Job) {
	s.enqueue(j)
}

// Tick retires finished jobs, keeping the cursor on the same logical job,
// then rotates once a full quantum has elapsed.
func (s *RoundRobin) Tick(delta time.Duration) {
	s.offset = 0

	s.retire(func(idx int, j *job.Job) {
		if idx < s.cursor {
			s.cursor--
		}
		delete(s.served, j)
	})
	if s.cursor >= len(s.queue) {
		s.cursor = 0
	}

	s.elapsed += delta
	if s.elapsed >= s.quantum && len(s.queue) > 0 {
		s.elapsed = 0
		s.cursor = (s.cursor + len(s.served)) % len(s.queue)
		s.logger.Debug("quantum expired", "rotated_by", len(s.served), "cursor", s.cursor)
		clear(s.served)
	}
}

// Next walks forward from the cursor and returns the next job not yet
// dispatched in this wave. It returns nil once the walk wraps onto a job
// that was already handed out, so at most Pending() jobs are served per wave.
func (s *RoundRobin) Next() *job.Job {
	n := len(s.queue)
	if n == 0 || s.offset >= n {
		return nil
	}
	j := s.queue[(s.cursor+s.offset)%n]
	if s.wasDispatched(j) {
		return nil
	}
	s.offset++
	s.dispatch(j)
	s.served[j] = struct{}{}
	return j
}
