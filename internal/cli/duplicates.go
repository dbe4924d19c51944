package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"imagededup/internal/apiclient"
)

func newDuplicatesCmd() *cobra.Command {
	var (
		threshold float64
		k         int
	)

	cmd := &cobra.Command{
		Use:   "duplicates <request_id>",
		Short: "List corpus images that duplicate an ingested batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := apiclient.DuplicatesQuery{}
			if cmd.Flags().Changed("threshold") {
				q.Threshold = &threshold
			}
			if cmd.Flags().Changed("k") {
				if k <= 0 {
					return fmt.Errorf("k must be greater than 0")
				}
				q.K = k
			}

			res, err := newClient().Duplicates(cmd.Context(), args[0], q)
			if err != nil {
				return fmt.Errorf("duplicates failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 1.0, "inclusive squared L2 distance bound (default from server)")
	cmd.Flags().IntVar(&k, "k", 3, "neighbors examined per image, itself included (default from server)")
	return cmd
}
