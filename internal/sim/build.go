package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/config"
	"github.com/me/schedsim/internal/display"
	"github.com/me/schedsim/internal/executor"
	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/internal/metrics"
	"github.com/me/schedsim/internal/producer"
	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

// Options carries the dependencies of a simulation that are not part of
// its configuration.
type Options struct {
	// RunID labels the job records.
	RunID string

	// Output is the console display destination. Defaults to stdout.
	Output io.Writer

	// Metrics, when set, observes the scheduler for the run's duration.
	Metrics *metrics.Collectors

	Logger *slog.Logger
}

// Simulation is a fully wired simulation.
type Simulation struct {
	Config    config.SimConfig
	Clock     clock.Clock
	Scheduler scheduler.Scheduler
	Source    producer.Source
	Unit      executor.Unit
	Display   display.Display
	Recorder  *Recorder
	Loop      *Loop

	detach func()
	logger *slog.Logger
}

// Result summarizes a finished (or interrupted) simulation.
type Result struct {
	Created   int
	Records   []*model.JobRecord
	Simulated time.Duration
}

// Build validates cfg and wires its components.
func Build(cfg config.SimConfig, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.OrDiscard(opts.Logger)

	var clk clock.Clock
	if cfg.Virtual {
		clk = clock.NewManual(time.Now())
	} else {
		d, err := clock.NewDilated(cfg.Speed)
		if err != nil {
			return nil, err
		}
		clk = clock.NewStepped(d)
	}

	sched, err := scheduler.New(cfg.Scheduler, scheduler.Options{
		Quantum:             cfg.Quantum.D(),
		StarvationThreshold: cfg.StarvationThreshold.D(),
		Logger:              logger,
	})
	if err != nil {
		return nil, err
	}

	src, err := producer.New(cfg.Producer, sched, clk, producer.Options{
		Count:    cfg.JobCount,
		MinTime:  cfg.JobMinTime.D(),
		MaxTime:  cfg.JobMaxTime.D(),
		Seed:     cfg.Seed,
		JobsFile: cfg.JobsFile,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	unit, err := executor.New(cfg.Consumer, sched, executor.Options{
		Cores:         cfg.Cores,
		LegacyOverrun: cfg.LegacyOverrun,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	disp, err := display.New(cfg.Display, src, display.Options{
		Writer:  opts.Output,
		LogFile: cfg.LogFile,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		Config:    cfg,
		Clock:     clk,
		Scheduler: sched,
		Source:    src,
		Unit:      unit,
		Display:   disp,
		Recorder:  NewRecorder(opts.RunID, src),
		logger:    logger.With("component", "sim"),
	}
	loopCfg := Config{PollInterval: cfg.PollInterval.D()}
	if cfg.Virtual {
		loopCfg.MaxSimulated = cfg.Time.D()
	}
	s.Loop = NewLoop(clk, src, sched, unit, disp, loopCfg, logger)
	if opts.Metrics != nil {
		s.detach = opts.Metrics.Observe(sched)
	}
	return s, nil
}

// Run produces the jobs and drives the loop to completion. Wall-clock runs
// are bounded by the simulated time budget divided by the speed; virtual
// runs by the simulated budget itself. Statistics are printed and the
// display closed even when the budget runs out.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	defer func() {
		if s.detach != nil {
			s.detach()
		}
	}()

	if err := s.Source.Produce(); err != nil {
		s.Display.Close()
		return nil, err
	}

	var runErr error
	if s.Config.Virtual {
		runErr = s.Loop.RunVirtual(ctx, s.Config.Step.D())
	} else {
		wctx, cancel := context.WithTimeout(ctx, s.Config.WallBudget())
		runErr = s.Loop.Run(wctx)
		cancel()
	}

	s.Display.Stats()
	closeErr := s.Display.Close()

	res := &Result{
		Created:   s.Recorder.Created(),
		Records:   s.Recorder.Records(),
		Simulated: s.Loop.Simulated(),
	}
	s.logger.Info("simulation summary",
		"scheduler", s.Config.Scheduler,
		"created", res.Created,
		"finished", len(res.Records),
		"simulated", res.Simulated,
	)
	return res, errors.Join(runErr, closeErr)
}
