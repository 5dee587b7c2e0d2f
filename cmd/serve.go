package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corefreq/cpu-freq-manager/internal/agent"
)

func newServeCmd() *cobra.Command {
	var configPath string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the corefreq agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := agent.LoadConfig(configPath)
			if err != nil {
				return err
			}
			log, err := agent.NewLogger(cfg.Verbosity)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(),
				syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()

			return agent.Run(ctx, cfg, log)
		},
	}

	serveCmd.Flags().StringVar(&configPath, "config", "", "path to the agent config file")
	return serveCmd
}
