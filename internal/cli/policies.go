package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
)

func newPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List schedulers, producers, consumers and displays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-11s %s\n", "schedulers:", join(scheduler.Kinds()))
			fmt.Fprintf(out, "%-11s %s\n", "producers:", join(model.ProducerKinds()))
			fmt.Fprintf(out, "%-11s %s\n", "consumers:", join(model.ConsumerKinds()))
			fmt.Fprintf(out, "%-11s %s\n", "displays:", join(model.DisplayKinds()))
			return nil
		},
	}
}

func join[T ~string](kinds []T) string {
	s := make([]string, len(kinds))
	for i, k := range kinds {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}
