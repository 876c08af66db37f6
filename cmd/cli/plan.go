package cli

import (
	"fmt"
	"strings"

	"adpilot/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagPlanUser string
	flagPlanName string
)

// planCmd changes a user's plan, e.g. after a billing downgrade.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Change a user's plan and deactivate rules beyond its limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(flagPlanUser) == "" {
			return fmt.Errorf("--user is required")
		}
		cfg := config.Load()
		if err := config.InitLogger(cfg); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		app, err := newApplication(cfg, logrus.StandardLogger())
		if err != nil {
			return err
		}
		defer app.Close()

		change, err := app.plans.ChangePlan(cmd.Context(), flagPlanUser, flagPlanName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %s: %s -> %s, deactivated %d rule(s)\n",
			change.UserID, change.PreviousPlan, change.Plan, len(change.DeactivatedRules))
		for _, id := range change.DeactivatedRules {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
		}
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&flagPlanUser, "user", "", "user id")
	planCmd.Flags().StringVar(&flagPlanName, "plan", "", "new plan: free, pro or agency")
	rootCmd.AddCommand(planCmd)
}
