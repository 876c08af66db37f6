package cli

import (
	"encoding/json"
	"fmt"

	"adpilot/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagSweepJSON bool

// sweepCmd runs a single rule sweep and prints its summary.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one rule sweep over all active accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := config.InitLogger(cfg); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		app, err := newApplication(cfg, logrus.StandardLogger())
		if err != nil {
			return err
		}
		defer app.Close()

		summary, err := app.worker.TriggerNow(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if flagSweepJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		fmt.Fprintf(out, "accounts=%d users=%d rules=%d ads=%d triggered=%d stop_failures=%d notified=%d user_errors=%d duration=%s\n",
			summary.Accounts, summary.Users, summary.RulesChecked, summary.AdsEvaluated,
			summary.Triggered, summary.StopFailures, summary.Notified, summary.UserErrors, summary.Duration)
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&flagSweepJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(sweepCmd)
}
