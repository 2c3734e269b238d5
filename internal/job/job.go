// Package job models a unit of simulated CPU work and its lifecycle.
package job

import (
	"fmt"
	"time"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/event"
)

// Status is the lifecycle status of a Job.
type Status string

const (
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Job lifecycle events.
const (
	EventArrived  event.Name = "arrived"
	EventStarted  event.Name = "started"
	EventFinished event.Name = "finished"
)

// Job is one unit of simulated work.
//
// Timestamps are written only by the Mark* methods and RunFor, each exactly
// once, in the order created <= arrived <= service start <= finished.
type Job struct {
	id          uint64
	executeTime time.Duration
	delay       time.Duration
	timeLeft    time.Duration

	clock        clock.Clock
	created      time.Time
	arrived      *time.Time
	serviceStart *time.Time
	finished     *time.Time

	events event.Registry[*Job]
}

// New creates a job with the given id, total execute time and release delay.
// The creation timestamp is taken from clk.
func New(id uint64, executeTime, delay time.Duration, clk clock.Clock) *Job {
	return &Job{
		id:          id,
		executeTime: executeTime,
		delay:       delay,
		timeLeft:    executeTime,
		clock:       clk,
		created:     clk.Now(),
	}
}

func (j *Job) String() string {
	return fmt.Sprintf("Job #%d", j.id)
}

// ID returns the job's sequence number.
func (j *Job) ID() uint64 { return j.id }

// ExecuteTime returns the total amount of work the job requires.
func (j *Job) ExecuteTime() time.Duration { return j.executeTime }

// Delay returns the release delay relative to the start of production.
func (j *Job) Delay() time.Duration { return j.delay }

// TimeLeft returns the remaining work, never negative.
func (j *Job) TimeLeft() time.Duration {
	return max(j.timeLeft, 0)
}

// Status reports FINISHED once the finish timestamp is set.
func (j *Job) Status() Status {
	if j.finished != nil {
		return StatusFinished
	}
	return StatusRunning
}

// Created returns the creation timestamp.
func (j *Job) Created() time.Time { return j.created }

// Arrived returns the arrival timestamp, if set.
func (j *Job) Arrived() (time.Time, bool) { return deref(j.arrived) }

// ServiceStart returns the first execution timestamp, if set.
func (j *Job) ServiceStart() (time.Time, bool) { return deref(j.serviceStart) }

// Finished returns the finish timestamp, if set.
func (j *Job) Finished() (time.Time, bool) { return deref(j.finished) }

// ServiceTime is the time from creation to first execution.
func (j *Job) ServiceTime() (time.Duration, bool) {
	if j.serviceStart == nil {
		return 0, false
	}
	return j.serviceStart.Sub(j.created), true
}

// WaitTime is the time from arrival to first execution.
func (j *Job) WaitTime() (time.Duration, bool) {
	if j.serviceStart == nil || j.arrived == nil {
		return 0, false
	}
	return j.serviceStart.Sub(*j.arrived), true
}

// ProcessTime is the time from first execution to finish.
func (j *Job) ProcessTime() (time.Duration, bool) {
	if j.finished == nil || j.serviceStart == nil {
		return 0, false
	}
	return j.finished.Sub(*j.serviceStart), true
}

// TotalTime is the time from arrival to finish (turnaround).
func (j *Job) TotalTime() (time.Duration, bool) {
	if j.finished == nil || j.arrived == nil {
		return 0, false
	}
	return j.finished.Sub(*j.arrived), true
}

// QueueTime is the time spent in a scheduler since arrival, capped at finish.
func (j *Job) QueueTime() (time.Duration, bool) {
	if j.arrived == nil {
		return 0, false
	}
	if j.finished != nil {
		return j.finished.Sub(*j.arrived), true
	}
	return j.clock.Now().Sub(*j.arrived), true
}

// On registers a lifecycle handler. See EventArrived, EventStarted, EventFinished.
func (j *Job) On(name event.Name, fn func(*Job)) event.Handle {
	return j.events.On(name, fn)
}

// Off removes a lifecycle handler.
func (j *Job) Off(name event.Name, h event.Handle) {
	j.events.Off(name, h)
}

// MarkArrival records the arrival time. Repeated calls are no-ops.
func (j *Job) MarkArrival() {
	if j.arrived != nil {
		return
	}
	j.arrived = j.stamp(j.created)
	j.events.Fire(EventArrived, j)
}

// MarkServiceStart records the first execution time. Repeated calls are no-ops.
func (j *Job) MarkServiceStart() {
	if j.serviceStart != nil {
		return
	}
	floor := j.created
	if j.arrived != nil {
		floor = *j.arrived
	}
	j.serviceStart = j.stamp(floor)
	j.events.Fire(EventStarted, j)
}

// MarkFinish records the finish time. Repeated calls are no-ops.
func (j *Job) MarkFinish() {
	if j.finished != nil {
		return
	}
	floor := j.created
	if j.serviceStart != nil {
		floor = *j.serviceStart
	} else if j.arrived != nil {
		floor = *j.arrived
	}
	j.finished = j.stamp(floor)
	j.events.Fire(EventFinished, j)
}

// RunFor advances the job by d of work. The first call marks service start;
// the job finishes once the remaining time reaches zero. Running a finished
// job does nothing.
func (j *Job) RunFor(d time.Duration) {
	if j.finished != nil {
		return
	}
	j.MarkServiceStart()
	if d > 0 {
		j.timeLeft -= d
	}
	if j.timeLeft <= 0 {
		j.MarkFinish()
	}
}

// stamp returns the current clock time, never earlier than floor.
func (j *Job) stamp(floor time.Time) *time.Time {
	now := j.clock.Now()
	if now.Before(floor) {
		now = floor
	}
	return &now
}

func deref(t *time.Time) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}
