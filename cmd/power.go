package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSuspendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suspend",
		Short: "Gate all cores ahead of a system suspend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := client.Suspend(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all cores gated")
			return nil
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Clear the suspend gate on all cores after resume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := client.Resume(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all cores resumed")
			return nil
		},
	}
}
