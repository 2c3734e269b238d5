package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/me/schedsim/internal/config"
	"github.com/me/schedsim/pkg/model"
)

// simFlags binds the simulation config keys to command flags. A config file
// given with --config is the base; positional kinds and explicitly set flags
// override it.
type simFlags struct {
	values     config.SimConfig
	configPath string
	overrides  []override
}

type override struct {
	name  string
	apply func(dst *config.SimConfig)
}

func (f *simFlags) track(name string, apply func(dst *config.SimConfig)) {
	f.overrides = append(f.overrides, override{name: name, apply: apply})
}

func bindSimFlags(cmd *cobra.Command, f *simFlags) {
	f.values = config.DefaultSimConfig()
	v := &f.values
	fs := cmd.Flags()

	fs.StringVar(&f.configPath, "config", "", "YAML config file used as the base configuration")

	fs.StringVar(&v.JobsFile, "jobs-file", v.JobsFile, "Batch file of 'delay,execute_time' records (batch-file producer)")
	f.track("jobs-file", func(c *config.SimConfig) { c.JobsFile = v.JobsFile })
	fs.IntVar(&v.JobCount, "job-count", v.JobCount, "Number of jobs (random producer)")
	f.track("job-count", func(c *config.SimConfig) { c.JobCount = v.JobCount })
	fs.Var(&v.JobMinTime, "job-min-time", "Shortest execute time (random producer)")
	f.track("job-min-time", func(c *config.SimConfig) { c.JobMinTime = v.JobMinTime })
	fs.Var(&v.JobMaxTime, "job-max-time", "Longest execute time (random producer)")
	f.track("job-max-time", func(c *config.SimConfig) { c.JobMaxTime = v.JobMaxTime })
	fs.Uint64Var(&v.Seed, "seed", v.Seed, "Random seed, 0 picks one from the clock")
	f.track("seed", func(c *config.SimConfig) { c.Seed = v.Seed })

	fs.IntVar(&v.Cores, "cores", v.Cores, "Execution units (multi consumer)")
	f.track("cores", func(c *config.SimConfig) { c.Cores = v.Cores })
	fs.Var(&v.Quantum, "quantum", "Round-robin time slice")
	f.track("quantum", func(c *config.SimConfig) { c.Quantum = v.Quantum })
	fs.Var(&v.StarvationThreshold, "starvation-threshold", "Hybrid policy starvation threshold")
	f.track("starvation-threshold", func(c *config.SimConfig) { c.StarvationThreshold = v.StarvationThreshold })

	fs.Var(&v.Time, "time", "Simulated time budget")
	f.track("time", func(c *config.SimConfig) { c.Time = v.Time })
	fs.Float64Var(&v.Speed, "speed", v.Speed, "Clock dilation factor (> 0)")
	f.track("speed", func(c *config.SimConfig) { c.Speed = v.Speed })
	fs.StringVar(&v.LogFile, "log-file", v.LogFile, "Output file of the log-file display")
	f.track("log-file", func(c *config.SimConfig) { c.LogFile = v.LogFile })

	fs.Var(&v.PollInterval, "poll-interval", "Wall clock polling interval")
	f.track("poll-interval", func(c *config.SimConfig) { c.PollInterval = v.PollInterval })
	fs.BoolVar(&v.Virtual, "virtual", v.Virtual, "Step a virtual clock instead of polling the wall clock")
	f.track("virtual", func(c *config.SimConfig) { c.Virtual = v.Virtual })
	fs.Var(&v.Step, "step", "Virtual clock step")
	f.track("step", func(c *config.SimConfig) { c.Step = v.Step })
	fs.BoolVar(&v.LegacyOverrun, "legacy-overrun", v.LegacyOverrun, "Charge jobs the whole remaining budget of a tick")
	f.track("legacy-overrun", func(c *config.SimConfig) { c.LegacyOverrun = v.LegacyOverrun })
}

// simArgs accepts `<scheduler> <producer> <consumer> [display]`. The kinds
// may be omitted when a config file supplies them.
func simArgs(f *simFlags) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > 4 {
			return errors.New("accepts at most 4 args: <scheduler> <producer> <consumer> [display]")
		}
		if f.configPath == "" && len(args) < 3 {
			return errors.New("requires <scheduler> <producer> <consumer> [display], or --config")
		}
		return nil
	}
}

// resolve builds the effective config.
func (f *simFlags) resolve(cmd *cobra.Command, args []string) (config.SimConfig, error) {
	cfg := config.DefaultSimConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(f.configPath, cfg); err != nil {
			return cfg, err
		}
	}

	if len(args) > 0 {
		cfg.Scheduler = model.SchedulerKind(args[0])
	}
	if len(args) > 1 {
		cfg.Producer = model.ProducerKind(args[1])
	}
	if len(args) > 2 {
		cfg.Consumer = model.ConsumerKind(args[2])
	}
	if len(args) > 3 {
		cfg.Display = model.DisplayKind(args[3])
	}

	for _, o := range f.overrides {
		if cmd.Flags().Changed(o.name) {
			o.apply(&cfg)
		}
	}
	return cfg, nil
}
