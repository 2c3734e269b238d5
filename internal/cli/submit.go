package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/schedsim/pkg/model"
)

func newSubmitCmd() *cobra.Command {
	var (
		flags   simFlags
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit <scheduler> <producer> <consumer>",
		Short: "Submit a simulation to a schedsim server",
		Long: `Submit a simulation to the server given by --server. The server runs it on
a virtual clock without a display; use 'schedsim runs show' to inspect it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd, args)
			if err != nil {
				return err
			}

			resp, err := client.Post("/api/v1/runs", cfg)
			if err != nil {
				return fmt.Errorf("submit run: %w", describeError(err))
			}
			var run model.Run
			if err := json.Unmarshal(resp.Data, &run); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run created: %s (%s)\n", run.ID, run.State)
			if !wait {
				return nil
			}

			deadline := time.Now().Add(timeout)
			for !run.State.IsTerminal() {
				if time.Now().After(deadline) {
					return fmt.Errorf("run %s still %s after %s", run.ID, run.State, timeout)
				}
				time.Sleep(200 * time.Millisecond)
				r, err := client.GetRun(run.ID)
				if err != nil {
					return fmt.Errorf("get run: %w", err)
				}
				run = *r
			}
			printRun(out, &run)
			if run.State == model.RunStateFailed {
				return fmt.Errorf("run %s failed: %s", run.ID, run.Error)
			}
			return nil
		},
	}

	bindSimFlags(cmd, &flags)
	cmd.Args = simArgs(&flags)
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish and print its summary")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long --wait waits")

	return cmd
}
