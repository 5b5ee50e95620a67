package main

import (
	"fmt"

	"github.com/aretw0/triage/pkg/adapters/sqlite"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the visit database",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the visit schema, optionally loading the sample visits",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		seed, _ := cmd.Flags().GetBool("seed")

		if path == "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path = cfg.Records.Path
		}
		if path == "" {
			return fmt.Errorf("no database path: pass --path or set records.path")
		}

		db, err := sqlite.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()

		if seed {
			if err := db.Seed(cmd.Context(), sqlite.SampleVisits); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d visits into %s\n", len(sqlite.SampleVisits), path)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema ready in %s\n", path)
		return nil
	},
}

func init() {
	dbInitCmd.Flags().String("path", "", "SQLite file to initialize (defaults to records.path)")
	dbInitCmd.Flags().Bool("seed", false, "Load the built-in sample visits")
	dbCmd.AddCommand(dbInitCmd)
	rootCmd.AddCommand(dbCmd)
}
