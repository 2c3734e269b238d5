package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/me/schedsim/internal/config"
	"github.com/me/schedsim/internal/metrics"
	"github.com/me/schedsim/internal/sim"
	"github.com/me/schedsim/internal/store"
	"github.com/me/schedsim/pkg/model"
)

func newRunCmd() *cobra.Command {
	var (
		flags       simFlags
		dbPath      string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run <scheduler> <producer> <consumer> [display]",
		Short: "Run a simulation locally",
		Long: `Run a simulation in this process.

  scheduler  fcfs | round-robin | sjn | hybrid
  producer   random | batch-file
  consumer   single | multi
  display    console | log-file | none (default console)

The console display prints a status table every simulated second and the
averaged latency at the end. The run fails when jobs are still pending once
the simulated time budget (--time) is spent.`,
		Example: `  schedsim run fcfs random single
  schedsim run round-robin random multi --cores 2 --quantum 2s
  schedsim run sjn batch-file single --jobs-file jobs.csv --virtual`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd, args)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return describeError(err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var col *metrics.Collectors
			if metricsAddr != "" {
				reg := metrics.NewRegistry()
				col = metrics.New(reg)
				shutdown, err := serveMetrics(metricsAddr, metrics.Handler(reg))
				if err != nil {
					return err
				}
				defer shutdown()
			}

			var st store.Store
			if dbPath != "" {
				s, err := store.NewSQLiteStore(dbPath, logger)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer s.Close()
				if err := s.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate database: %w", err)
				}
				st = s
			}

			return runLocal(ctx, cmd, cfg, st, col)
		},
	}
	bindSimFlags(cmd, &flags)
	cmd.Args = simArgs(&flags)
	cmd.Flags().StringVar(&dbPath, "db", "", "Record the run and its job results in this SQLite database")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090)")

	return cmd
}

// runLocal executes cfg in this process, persisting the run when st is set.
func runLocal(ctx context.Context, cmd *cobra.Command, cfg config.SimConfig, st store.Store, col *metrics.Collectors) error {
	run := &model.Run{
		ID:        "run_" + uuid.New().String(),
		State:     model.RunStatePending,
		Scheduler: cfg.Scheduler,
		Producer:  cfg.Producer,
		Consumer:  cfg.Consumer,
		Display:   cfg.Display,
		Cores:     cfg.Cores,
		Seed:      cfg.Seed,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
	if st != nil {
		if err := st.CreateRun(ctx, run); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		now := time.Now().UTC()
		run.State = model.RunStateRunning
		run.StartedAt = &now
		if err := st.UpdateRun(ctx, run); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}

	s, err := sim.Build(cfg, sim.Options{
		RunID:   run.ID,
		Output:  cmd.OutOrStdout(),
		Metrics: col,
		Logger:  logger,
	})
	if err != nil {
		return finishRun(st, run, nil, err)
	}
	res, runErr := s.Run(ctx)
	return finishRun(st, run, res, runErr)
}

// finishRun records the outcome of run when st is set and returns runErr.
func finishRun(st store.Store, run *model.Run, res *sim.Result, runErr error) error {
	if st == nil {
		return runErr
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if res != nil {
		run.JobCount = res.Created
		run.Simulated = res.Simulated.Seconds()
		run.Summarize(res.Records)
		if len(res.Records) > 0 {
			if err := st.InsertJobRecords(ctx, run.ID, res.Records); err != nil {
				runErr = errors.Join(runErr, err)
			}
		}
	}
	done := time.Now().UTC()
	run.CompletedAt = &done
	run.State = model.RunStateCompleted
	if runErr != nil {
		run.State = model.RunStateFailed
		run.Error = runErr.Error()
	}
	if err := st.UpdateRun(ctx, run); err != nil {
		return errors.Join(runErr, fmt.Errorf("record run: %w", err))
	}
	logger.Info("run recorded", "run_id", run.ID, "state", run.State)
	return runErr
}

// serveMetrics serves h on addr until the returned function is called.
func serveMetrics(addr string, h http.Handler) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	r := chi.NewRouter()
	r.Handle("/metrics", h)
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

// describeError expands a validation error into one line per field.
func describeError(err error) error {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Details) == 0 {
		return err
	}
	msg := apiErr.Message
	for _, d := range apiErr.Details {
		msg += fmt.Sprintf("\n  %s: %s", d.Field, d.Message)
	}
	return errors.New(msg)
}
