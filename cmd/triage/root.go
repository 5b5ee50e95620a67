package main

import (
	"fmt"
	"os"

	"github.com/aretw0/triage/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Triage is an admit/discharge decision engine for emergency department visits",
	Long: `Triage runs a fixed workflow over one visit: it resolves the patient record,
applies a deterministic severity gate, fuses model scores and routes uncertain
cases to human review. Every step is written to an audit trail.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (TRIAGE_* variables override it)")
}

// loadConfig reads the file named by --config, or the defaults when it is unset.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
