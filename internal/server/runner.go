package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/me/schedsim/internal/config"
	"github.com/me/schedsim/internal/producer"
	"github.com/me/schedsim/internal/sim"
	"github.com/me/schedsim/pkg/model"
)

// launch executes run in the background. At most MaxConcurrentRuns
// simulations execute at once; the rest stay PENDING until a slot frees.
func (s *Server) launch(run *model.Run, cfg config.SimConfig) {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		select {
		case s.slots <- struct{}{}:
		case <-s.ctx.Done():
			s.fail(run, s.ctx.Err())
			return
		}
		defer func() { <-s.slots }()
		s.execute(run, cfg)
	}()
}

// execute runs one simulation. The simulation stops when the server shuts
// down; store writes outlive that so the outcome is still recorded.
func (s *Server) execute(run *model.Run, cfg config.SimConfig) {
	ctx := context.WithoutCancel(s.ctx)
	logger := s.logger.With("run_id", run.ID)

	now := time.Now().UTC()
	run.State = model.RunStateRunning
	run.StartedAt = &now
	if err := s.store.UpdateRun(ctx, run); err != nil {
		logger.Error("mark run running", "error", err)
		return
	}

	simulation, err := sim.Build(cfg, sim.Options{
		RunID:   run.ID,
		Metrics: s.metrics,
		Logger:  logger,
	})
	if err != nil {
		s.fail(run, err)
		return
	}

	res, runErr := simulation.Run(s.ctx)
	if res != nil {
		run.JobCount = res.Created
		run.Simulated = res.Simulated.Seconds()
		run.Summarize(res.Records)
		if len(res.Records) > 0 {
			if err := s.store.InsertJobRecords(ctx, run.ID, res.Records); err != nil {
				runErr = errors.Join(runErr, err)
			}
		}
	}
	if runErr != nil {
		s.fail(run, runErr)
		return
	}

	done := time.Now().UTC()
	run.State = model.RunStateCompleted
	run.CompletedAt = &done
	if err := s.store.UpdateRun(ctx, run); err != nil {
		logger.Error("mark run completed", "error", err)
		return
	}
	logger.Info("run completed",
		"finished", run.FinishedCount,
		"avg_turnaround", run.AvgTurnaround,
		"simulated", res.Simulated,
	)
}

// fail records cause on the run. The update uses a fresh context so a
// shutdown still leaves the run in a terminal state.
func (s *Server) fail(run *model.Run, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := time.Now().UTC()
	run.State = model.RunStateFailed
	run.Error = runError(cause)
	run.CompletedAt = &done
	if err := s.store.UpdateRun(ctx, run); err != nil {
		s.logger.Error("mark run failed", "run_id", run.ID, "error", err)
		return
	}
	s.logger.Warn("run failed", "run_id", run.ID, "error", cause)
}

// runError is the failure text exposed through the API. Batch file errors
// are reduced to the record number so file contents and server paths stay
// out of responses.
func runError(err error) string {
	var pe *producer.ParseError
	if errors.As(err, &pe) {
		if pe.Record == 0 {
			return "jobs file is malformed"
		}
		return fmt.Sprintf("jobs file record %d is malformed", pe.Record)
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return "jobs file cannot be opened"
	}
	return err.Error()
}
