package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/schedsim/pkg/model"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs stored by a schedsim server",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var (
		limit  int
		offset int
		state  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			if state != "" {
				q.Set("state", state)
			}
			resp, err := client.Get("/api/v1/runs?" + q.Encode())
			if err != nil {
				return fmt.Errorf("list runs: %w", describeError(err))
			}

			var runs []*model.Run
			if err := json.Unmarshal(resp.Data, &runs); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-10s  %-12s  %-10s  %-8s  %s\n", "ID", "STATE", "SCHEDULER", "CONSUMER", "JOBS", "CREATED")
			fmt.Fprintf(out, "%-40s  %-10s  %-12s  %-10s  %-8s  %s\n", "--", "-----", "---------", "--------", "----", "-------")
			for _, r := range runs {
				jobs := fmt.Sprintf("%d/%d", r.FinishedCount, r.JobCount)
				fmt.Fprintf(out, "%-40s  %-10s  %-12s  %-10s  %-8s  %s\n",
					r.ID, r.State, r.Scheduler, r.Consumer, jobs, r.CreatedAt.Format("2006-01-02 15:04:05"))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), resp.Pagination.Total)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")
	cmd.Flags().StringVar(&state, "state", "", "Only runs in this state (PENDING, RUNNING, COMPLETED, FAILED)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	var jobs bool
	cmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show a run and, with --jobs, its per-job results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			run, err := client.GetRun(id)
			if err != nil {
				return fmt.Errorf("get run: %w", describeError(err))
			}
			out := cmd.OutOrStdout()
			printRun(out, run)
			if !jobs {
				return nil
			}

			resp, err := client.Get("/api/v1/runs/" + id + "/jobs")
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			var records []*model.JobRecord
			if err := json.Unmarshal(resp.Data, &records); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			printJobs(out, records)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jobs, "jobs", false, "Also print per-job results")
	return cmd
}

func printRun(w io.Writer, r *model.Run) {
	fmt.Fprintf(w, "Run: %s\n", r.ID)
	fmt.Fprintf(w, "  State:      %s\n", r.State)
	fmt.Fprintf(w, "  Scheduler:  %s\n", r.Scheduler)
	fmt.Fprintf(w, "  Producer:   %s\n", r.Producer)
	fmt.Fprintf(w, "  Consumer:   %s", r.Consumer)
	if r.Consumer == model.ConsumerMulti {
		fmt.Fprintf(w, " (%d cores)", r.Cores)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Jobs:       %d finished of %d\n", r.FinishedCount, r.JobCount)
	if r.FinishedCount > 0 {
		fmt.Fprintf(w, "  Avg wait:   %.2fs\n", r.AvgWait)
		fmt.Fprintf(w, "  Avg total:  %.2fs\n", r.AvgTurnaround)
	}
	if r.Simulated > 0 {
		fmt.Fprintf(w, "  Simulated:  %.2fs\n", r.Simulated)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  Error:      %s\n", r.Error)
	}
	fmt.Fprintf(w, "  Created:    %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	if r.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed:  %s\n", r.CompletedAt.Format("2006-01-02 15:04:05"))
	}
}

func printJobs(w io.Writer, records []*model.JobRecord) {
	fmt.Fprintf(w, "\n%-7s | %12s | %12s | %12s | %12s\n", "Job #", "Execute Time", "Wait Time", "Process Time", "Total Time")
	for _, j := range records {
		fmt.Fprintf(w, "Job %-3d | %12.2f | %12.2f | %12.2f | %12.2f\n",
			j.JobID, j.ExecuteTime, j.WaitTime, j.ProcessTime, j.TotalTime)
	}
}
