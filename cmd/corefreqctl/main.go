package main

import (
	"os"

	"github.com/corefreq/cpu-freq-manager/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
