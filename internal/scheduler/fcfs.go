package scheduler

import (
	"cmp"
	"slices"
	"time"

	"github.com/me/schedsim/internal/job"
	"github.com/me/schedsim/pkg/model"
)

// FCFS runs jobs in arrival order. The cursor restarts at the head of the
// queue on every tick, so successive Next calls in one wave hand out
// successive jobs.
type FCFS struct {
	base
	cursor int
}

// NewFCFS creates a first-come-first-served scheduler.
func NewFCFS(opts Options) *FCFS {
	return &FCFS{base: newBase(model.SchedulerFCFS, opts.Logger)}
}

// Enqueue appends j in arrival order.
func (s *FCFS) Enqueue(j *job.Job) {
	s.enqueue(j)
}

// Tick retires finished jobs and rewinds the cursor.
func (s *FCFS) Tick(time.Duration) {
	s.retire(nil)
	s.cursor = 0
}

// Next returns the job at the cursor and advances it.
func (s *FCFS) Next() *job.Job {
	if s.cursor >= len(s.queue) {
		return nil
	}
	j := s.queue[s.cursor]
	s.cursor++
	s.dispatch(j)
	return j
}

// SJN (shortest job next) keeps the queue sorted by remaining time.
// Equal remaining times keep their arrival order.
type SJN struct {
	FCFS
}

// NewSJN creates a shortest-job-next scheduler.
func NewSJN(opts Options) *SJN {
	return &SJN{FCFS{base: newBase(model.SchedulerSJN, opts.Logger)}}
}

// Enqueue inserts j and re-sorts by remaining time.
func (s *SJN) Enqueue(j *job.Job) {
	s.enqueue(j)
	slices.SortStableFunc(s.queue, func(a, b *job.Job) int {
		return cmp.Compare(a.TimeLeft(), b.TimeLeft())
	})
}

// Hybrid orders jobs shortest-first until they have been queued for the
// starvation threshold; from then on they are served in arrival order ahead
// of every younger job.
type Hybrid struct {
	FCFS
	threshold time.Duration
}

// NewHybrid creates a hybrid FCFS/SJN scheduler. A zero threshold makes
// every queued job old, which degenerates to FCFS order.
func NewHybrid(opts Options) *Hybrid {
	return &Hybrid{
		FCFS:      FCFS{base: newBase(model.SchedulerHybrid, opts.Logger)},
		threshold: max(opts.StarvationThreshold, 0),
	}
}

// Threshold returns the starvation threshold.
func (s *Hybrid) Threshold() time.Duration { return s.threshold }

// Enqueue inserts j and re-sorts the queue.
func (s *Hybrid) Enqueue(j *job.Job) {
	s.enqueue(j)
	s.sort()
}

// Tick retires finished jobs and re-sorts if the queue shrank.
func (s *Hybrid) Tick(time.Duration) {
	if s.retire(nil) > 0 {
		s.sort()
	}
	s.cursor = 0
}

func (s *Hybrid) sort() {
	// Age is sampled once so the ordering is consistent for the whole sort.
	old := make(map[*job.Job]bool, len(s.queue))
	for _, j := range s.queue {
		q, ok := j.QueueTime()
		old[j] = ok && q >= s.threshold
	}
	slices.SortStableFunc(s.queue, func(a, b *job.Job) int {
		aOld, bOld := old[a], old[b]
		switch {
		case aOld && bOld:
			at, _ := a.Arrived()
			bt, _ := b.Arrived()
			return at.Compare(bt)
		case aOld:
			return -1
		case bOld:
			return 1
		}
		return cmp.Compare(a.TimeLeft(), b.TimeLeft())
	})
}
