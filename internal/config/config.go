// Package config holds the simulation and server configuration, its defaults
// and its validation.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/pkg/model"
)

// SimConfig configures one simulation.
type SimConfig struct {
	Scheduler model.SchedulerKind `yaml:"scheduler" json:"scheduler"`
	Producer  model.ProducerKind  `yaml:"producer" json:"producer"`
	Consumer  model.ConsumerKind  `yaml:"consumer" json:"consumer"`
	Display   model.DisplayKind   `yaml:"display" json:"display"`

	// Batch file producer.
	JobsFile string `yaml:"jobs_file" json:"jobs_file,omitempty"`

	// Random producer.
	JobCount   int      `yaml:"job_count" json:"job_count"`
	JobMinTime Duration `yaml:"job_min_time" json:"job_min_time"`
	JobMaxTime Duration `yaml:"job_max_time" json:"job_max_time"`
	Seed       uint64   `yaml:"seed" json:"seed,omitempty"`

	Cores               int      `yaml:"cores" json:"cores"`
	Quantum             Duration `yaml:"quantum" json:"quantum"`
	StarvationThreshold Duration `yaml:"starvation_threshold" json:"starvation_threshold"`

	// Time is the simulated time budget.
	Time  Duration `yaml:"time" json:"time"`
	Speed float64  `yaml:"speed" json:"speed"`

	LogFile string `yaml:"log_file" json:"log_file,omitempty"`

	PollInterval Duration `yaml:"poll_interval" json:"poll_interval"`
	Virtual      bool     `yaml:"virtual" json:"virtual"`
	Step         Duration `yaml:"step" json:"step"`

	LegacyOverrun bool `yaml:"legacy_overrun" json:"legacy_overrun,omitempty"`
}

// DefaultSimConfig returns the defaults used when a key is not set.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Scheduler:           model.SchedulerFCFS,
		Producer:            model.ProducerRandom,
		Consumer:            model.ConsumerSingle,
		Display:             model.DisplayConsole,
		JobCount:            50,
		JobMinTime:          Duration(100 * time.Millisecond),
		JobMaxTime:          Duration(10 * time.Second),
		Cores:               4,
		Quantum:             Duration(3 * time.Second),
		StarvationThreshold: Duration(10 * time.Second),
		Time:                Duration(60 * time.Second),
		Speed:               1,
		LogFile:             DefaultLogFile(time.Now()),
		PollInterval:        Duration(10 * time.Millisecond),
		Step:                Duration(100 * time.Millisecond),
	}
}

// DefaultLogFile names the log-file display output for a run started at t.
func DefaultLogFile(t time.Time) string {
	return fmt.Sprintf("schedsim-%d-output.txt", t.Unix())
}

// LoadFile reads a YAML config from path on top of base.
func LoadFile(path string, base SimConfig) (SimConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f, base)
}

// Decode reads a YAML config from r on top of base. Unknown keys are errors.
func Decode(r io.Reader, base SimConfig) (SimConfig, error) {
	cfg := base
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks cfg before any simulation component is built. It returns a
// *model.APIError listing every problem found.
func (c SimConfig) Validate() error {
	var errs []model.FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, model.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !c.Scheduler.Valid() {
		add("scheduler", "unknown scheduler %q, want one of %v", c.Scheduler, model.SchedulerKinds())
	}
	if !c.Producer.Valid() {
		add("producer", "unknown producer %q, want one of %v", c.Producer, model.ProducerKinds())
	}
	if !c.Consumer.Valid() {
		add("consumer", "unknown consumer %q, want one of %v", c.Consumer, model.ConsumerKinds())
	}
	if !c.Display.Valid() {
		add("display", "unknown display %q, want one of %v", c.Display, model.DisplayKinds())
	}

	if c.Producer == model.ProducerBatchFile {
		if c.JobsFile == "" {
			add("jobs_file", "required for the batch-file producer")
		} else if _, err := os.Stat(c.JobsFile); err != nil {
			add("jobs_file", "jobs file cannot be found: %s", c.JobsFile)
		}
	}
	if c.Producer == model.ProducerRandom {
		if c.JobCount < 0 {
			add("job_count", "must not be negative")
		}
		if c.JobMinTime < 0 {
			add("job_min_time", "must not be negative")
		}
		if c.JobMaxTime < c.JobMinTime {
			add("job_max_time", "must be at least job_min_time")
		}
	}
	if c.Consumer == model.ConsumerMulti && c.Cores < 1 {
		add("cores", "must be at least 1")
	}
	if c.Quantum <= 0 {
		add("quantum", "must be positive")
	}
	if c.StarvationThreshold < 0 {
		add("starvation_threshold", "must not be negative")
	}
	if c.Time <= 0 {
		add("time", "must be positive")
	}
	if c.Speed <= 0 {
		add("speed", "speed should be greater than 0")
	}
	if c.Display == model.DisplayLogFile && c.LogFile == "" {
		add("log_file", "required for the log-file display")
	}
	if c.Virtual {
		if c.Step <= 0 {
			add("step", "must be positive")
		}
	} else if c.PollInterval <= 0 {
		add("poll_interval", "must be positive")
	}

	if len(errs) > 0 {
		return model.NewValidationError("invalid simulation config", errs...)
	}
	return nil
}

// WallBudget converts the simulated time budget to wall time at the
// configured speed.
func (c SimConfig) WallBudget() time.Duration {
	return time.Duration(float64(c.Time) / c.Speed)
}

// ServerConfig holds configuration for the schedsim server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.schedsim/schedsim.db, ":memory:" for testing)

	// MaxConcurrentRuns bounds simulations executing at once.
	MaxConcurrentRuns int

	// JobsDir is the only directory API runs may read batch files from.
	// Empty disables the batch-file producer for API runs.
	JobsDir string

	// MaxJobCount caps job_count for API runs.
	MaxJobCount int

	// MaxSteps caps the number of virtual steps (time / step) of an API run.
	MaxSteps int64
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":8080",
		LogLevel:          "info",
		LogFormat:         logging.FormatText,
		MaxConcurrentRuns: 4,
		MaxJobCount:       10000,
		MaxSteps:          1000000,
	}
}

// Validate checks the server settings.
func (c ServerConfig) Validate() error {
	var errs []model.FieldError
	if c.Addr == "" {
		errs = append(errs, model.FieldError{Field: "addr", Message: "required"})
	}
	if _, err := logging.ParseLevelStrict(c.LogLevel); err != nil {
		errs = append(errs, model.FieldError{Field: "log_level", Message: err.Error()})
	}
	if !logging.ValidFormat(c.LogFormat) {
		errs = append(errs, model.FieldError{Field: "log_format", Message: fmt.Sprintf("unknown format %q", c.LogFormat)})
	}
	if c.MaxConcurrentRuns < 1 {
		errs = append(errs, model.FieldError{Field: "max_concurrent_runs", Message: "must be at least 1"})
	}
	if c.MaxJobCount < 1 {
		errs = append(errs, model.FieldError{Field: "max_job_count", Message: "must be at least 1"})
	}
	if c.MaxSteps < 1 {
		errs = append(errs, model.FieldError{Field: "max_steps", Message: "must be at least 1"})
	}
	if len(errs) > 0 {
		return model.NewValidationError("invalid server config", errs...)
	}
	return nil
}
