package sim

import (
	"github.com/me/schedsim/internal/event"
	"github.com/me/schedsim/internal/job"
	"github.com/me/schedsim/internal/producer"
	"github.com/me/schedsim/pkg/model"
)

// Recorder collects a JobRecord for every job as it finishes.
type Recorder struct {
	runID   string
	created int
	records []*model.JobRecord
}

// NewRecorder subscribes a recorder to every job src creates.
func NewRecorder(runID string, src producer.Source) *Recorder {
	r := &Recorder{runID: runID}
	src.On(producer.EventNewJob, r.onNewJob)
	return r
}

func (r *Recorder) onNewJob(j *job.Job) {
	r.created++
	var h event.Handle
	h = j.On(job.EventFinished, func(j *job.Job) {
		j.Off(job.EventFinished, h)
		r.record(j)
	})
}

func (r *Recorder) record(j *job.Job) {
	rec := &model.JobRecord{
		RunID:       r.runID,
		JobID:       j.ID(),
		FinishOrder: len(r.records) + 1,
		ExecuteTime: j.ExecuteTime().Seconds(),
		Delay:       j.Delay().Seconds(),
	}
	if d, ok := j.WaitTime(); ok {
		rec.WaitTime = d.Seconds()
	}
	if d, ok := j.ProcessTime(); ok {
		rec.ProcessTime = d.Seconds()
	}
	if d, ok := j.TotalTime(); ok {
		rec.TotalTime = d.Seconds()
	}
	r.records = append(r.records, rec)
}

// Created returns the number of jobs the source created.
func (r *Recorder) Created() int { return r.created }

// Records returns the finished jobs in finish order.
func (r *Recorder) Records() []*model.JobRecord { return r.records }
