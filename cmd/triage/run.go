package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/cli"
	"github.com/aretw0/triage/internal/presentation/tui"
	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Triage one visit",
	Long: `Runs the triage workflow for a single visit and prints the decision.
With --interactive, low-confidence cases prompt on the terminal for an admission probability.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		visitID, _ := cmd.Flags().GetInt64("visit")
		note, _ := cmd.Flags().GetString("note")
		jsonMode, _ := cmd.Flags().GetBool("json")
		interactive, _ := cmd.Flags().GetBool("interactive")
		mermaid, _ := cmd.Flags().GetBool("mermaid")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := cli.NewLogger(cfg.Logging)
		if err != nil {
			return err
		}

		req := triage.RunRequest{VisitID: visitID, HumanNote: note}
		if cmd.Flags().Changed("override") {
			override, _ := cmd.Flags().GetFloat64("override")
			req.HumanOverride = &override
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		trail := memory.NewAuditLog()
		opts := cli.BuildOptions{ExtraSinks: []ports.AuditSink{trail}}
		if interactive {
			opts.Reviewer = tui.NewReviewer(os.Stdin, os.Stderr)
		}

		b, err := cli.NewBundle(ctx, cfg, logger, opts)
		if err != nil {
			return err
		}
		defer b.Close()

		if !jsonMode && tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout, triage.Version)
		}
		return cli.RunOnce(ctx, b, trail, req, cli.RunOptions{JSON: jsonMode, Mermaid: mermaid, Out: os.Stdout})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int64P("visit", "v", 0, "Visit identifier to triage")
	runCmd.Flags().StringP("note", "n", "", "Free-text clinician note")
	runCmd.Flags().Float64("override", 0, "Admission probability to apply if the case goes to human review")
	runCmd.Flags().Bool("json", false, "Print the result as JSON")
	runCmd.Flags().BoolP("interactive", "i", false, "Prompt for a human override on low-confidence cases")
	runCmd.Flags().Bool("mermaid", false, "Append a Mermaid diagram highlighting the visited nodes")
	_ = runCmd.MarkFlagRequired("visit")
}

