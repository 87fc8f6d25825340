package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "flowbench",
	Short: "Valve sequencing engine for fluid test benches",
	Long: `FlowBench drives the valves of a fluid test bench from operator-authored
sequences, records pressure telemetry and exposes a REST and WebSocket API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "path to the configuration file")
}

// getConfigPath returns the default configuration file path.
// Uses FLOWBENCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLOWBENCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
