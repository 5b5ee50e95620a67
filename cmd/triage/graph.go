package main

import (
	"fmt"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the triage workflow, fan-outs and routing labels included.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The topology does not depend on adapters, so an unwired engine is enough.
		eng, err := triage.New()
		if err != nil {
			return fmt.Errorf("build engine: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(eng.Topology(), nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
