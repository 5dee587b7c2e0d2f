package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/corefreq/cpu-freq-manager/internal/api"
)

func newSetCmd() *cobra.Command {
	var relation string

	setCmd := &cobra.Command{
		Use:   "set <core> <frequency-khz>",
		Short: "Request a frequency change for one core",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid core identifier %q", args[0])
			}
			target, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid frequency %q", args[1])
			}

			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			resp, err := client.SetFrequency(uint(core), uint(target), relation)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "core %d now at %d kHz\n", resp.Core, resp.FrequencyKHz)
			return nil
		},
	}

	setCmd.Flags().StringVar(&relation, "relation", "at-least",
		"rounding direction when the target is not a table entry (at-least|at-most)")
	return setCmd
}

func clientFromFlags(cmd *cobra.Command) (*api.Client, error) {
	addr, err := cmd.Flags().GetString("agent")
	if err != nil {
		return nil, err
	}
	return api.NewClient(addr), nil
}
