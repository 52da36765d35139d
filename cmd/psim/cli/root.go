// Package cli implements psim's cobra command surface, grounded on
// firestige-Otus's cmd/root.go (global --config flag, Execute entrypoint).
package cli

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:     "psim",
	Short:   "Discrete-time network and training-workload simulator",
	Version: "0.1.0",
}

// Execute runs the root command; it is the sole entrypoint cmd/psim/main.go calls.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (YAML)")
	rootCmd.AddCommand(runCmd)
}
