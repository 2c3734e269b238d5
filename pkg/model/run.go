package model

import (
	"time"
)

// Run is one persisted simulation.
type Run struct {
	ID            string        `json:"id"`
	State         RunState      `json:"state"`
	Scheduler     SchedulerKind `json:"scheduler"`
	Producer      ProducerKind  `json:"producer"`
	Consumer      ConsumerKind  `json:"consumer"`
	Display       DisplayKind   `json:"display,omitempty"`
	Cores         int           `json:"cores"`
	Seed          uint64        `json:"seed,omitempty"`
	Config        any           `json:"config,omitempty"`
	JobCount      int           `json:"job_count"`
	FinishedCount int           `json:"finished_count"`

	// Averages in simulated seconds over finished jobs.
	AvgWait       float64 `json:"avg_wait"`
	AvgTurnaround float64 `json:"avg_turnaround"`
	Simulated     float64 `json:"simulated_seconds"`

	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Jobs []*JobRecord `json:"jobs,omitempty"`
}

// JobRecord is the outcome of one job within a Run. Times are simulated seconds.
type JobRecord struct {
	RunID       string  `json:"run_id"`
	JobID       uint64  `json:"job_id"`
	FinishOrder int     `json:"finish_order"`
	ExecuteTime float64 `json:"execute_time"`
	Delay       float64 `json:"delay"`
	WaitTime    float64 `json:"wait_time"`
	ProcessTime float64 `json:"process_time"`
	TotalTime   float64 `json:"total_time"`
}

// Summarize fills the run's finished count and averages from jobs.
func (r *Run) Summarize(jobs []*JobRecord) {
	r.FinishedCount = len(jobs)
	if len(jobs) == 0 {
		r.AvgWait, r.AvgTurnaround = 0, 0
		return
	}
	var wait, total float64
	for _, j := range jobs {
		wait += j.WaitTime
		total += j.TotalTime
	}
	r.AvgWait = wait / float64(len(jobs))
	r.AvgTurnaround = total / float64(len(jobs))
}
