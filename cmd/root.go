package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "corefreqctl",
		Short:         "Coordinate per-core CPU frequency changes through the corefreq agent",
		Long:          "corefreqctl drives the node-local corefreq agent: run it (serve), request per-core frequency changes, inspect core state, and exercise the suspend/offline lifecycle hooks.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("agent", "http://127.0.0.1:10040",
		"base URL of the corefreq agent control API")

	rootCmd.AddCommand(
		newServeCmd(),
		newSetCmd(),
		newStatusCmd(),
		newSuspendCmd(),
		newResumeCmd(),
		newCoreCmd(),
	)

	return rootCmd
}
