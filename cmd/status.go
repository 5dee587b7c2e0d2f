package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-core frequency and gate state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Status()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "CORE\tFREQ (kHz)\tACTIVE\tSUSPENDED")
			for _, core := range resp.Cores {
				fmt.Fprintf(w, "%d\t%d\t%t\t%t\n",
					core.Core, core.FrequencyKHz, core.Active, core.Suspended)
			}
			return w.Flush()
		},
	}
}
