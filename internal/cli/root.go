// Package cli implements the schedsim command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/schedsim/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking SCHEDSIM_SERVER first.
func defaultServer() string {
	if s := os.Getenv("SCHEDSIM_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the schedsim CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "schedsim",
		Short: "schedsim is a CPU job scheduling simulator",
		Long: `schedsim simulates jobs arriving at a CPU scheduler and being executed by
one or more execution units. It compares FCFS, round-robin, shortest job next
and a hybrid FCFS/SJN policy over a virtual, optionally dilated clock.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			level, err := logging.ParseLevelStrict(flagLogLevel)
			if err != nil {
				return err
			}
			if !logging.ValidFormat(flagLogFormat) {
				return fmt.Errorf("unknown log format %q", flagLogFormat)
			}
			logger = logging.NewLoggerWithWriter(level, flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "schedsim server URL (or SCHEDSIM_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", logging.FormatText, "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newSubmitCmd(),
		newPoliciesCmd(),
		newRunsCmd(),
	)

	return root
}
