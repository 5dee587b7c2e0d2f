package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/corefreq/cpu-freq-manager/internal/agent"
)

func main() {
	var configPath string
	var verbosity int
	flag.StringVar(&configPath, "config", "", "Path to the agent config file.")
	flag.IntVar(&verbosity, "v", 0, "Log verbosity level.")
	flag.Parse()

	log, err := agent.NewLogger(verbosity)
	if err != nil {
		os.Exit(1)
	}
	setupLog := log.WithName("setup")

	cfg, err := agent.LoadConfig(configPath)
	if err != nil {
		setupLog.Error(err, "unable to load configuration")
		os.Exit(1)
	}
	if verbosity != 0 {
		cfg.Verbosity = verbosity
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	setupLog.Info("starting agent")
	if err := agent.Run(ctx, cfg, log); err != nil {
		setupLog.Error(err, "problem running agent")
		os.Exit(1)
	}
}
