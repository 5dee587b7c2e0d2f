package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/corefreq/cpu-freq-manager/internal/api"
)

func newCoreCmd() *cobra.Command {
	coreCmd := &cobra.Command{
		Use:   "core",
		Short: "Drive per-core lifecycle hooks",
	}

	coreCmd.AddCommand(
		newCoreHookCmd("online", "Mark a core fully online and clear its gate",
			(*api.Client).CoreOnline),
		newCoreHookCmd("offline-prepare", "Gate a core ahead of taking it offline",
			(*api.Client).CoreOfflinePrepare),
		newCoreHookCmd("offline-abort", "Clear a core's gate after an aborted offline",
			(*api.Client).CoreOfflineAbort),
	)
	return coreCmd
}

func newCoreHookCmd(name, short string, hook func(*api.Client, uint) error) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <core>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid core identifier %q", args[0])
			}
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			return hook(client, uint(core))
		},
	}
}
