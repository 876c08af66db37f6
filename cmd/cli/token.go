package cli

import (
	"fmt"
	"strings"
	"time"

	"adpilot/internal/config"
	"adpilot/internal/middleware"
	"adpilot/internal/models"

	"github.com/spf13/cobra"
)

var (
	flagUserID   string
	flagPlan     string
	flagTTLMin   int
	flagNoExpiry bool
)

// tokenCmd generates an HS256 JWT for testing/admin usage.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate a JWT (HS256) for API authentication",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if strings.TrimSpace(flagUserID) == "" {
			return fmt.Errorf("--user is required")
		}
		switch flagPlan {
		case models.PlanFree, models.PlanPro, models.PlanAgency:
		default:
			return fmt.Errorf("unknown plan %q", flagPlan)
		}
		ttl := time.Duration(flagTTLMin) * time.Minute
		if flagNoExpiry {
			ttl = 0
		}
		tok, err := middleware.IssueToken(cfg.Security.JWT, flagUserID, flagPlan, ttl, time.Now())
		if err != nil {
			return fmt.Errorf("%w; set security.jwt.secret in config", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagUserID, "user", "", "user id placed in sub")
	tokenCmd.Flags().StringVar(&flagPlan, "plan", models.PlanFree, "plan claim: free, pro or agency")
	tokenCmd.Flags().IntVar(&flagTTLMin, "ttl", 60, "token TTL in minutes")
	tokenCmd.Flags().BoolVar(&flagNoExpiry, "no-exp", false, "do not set exp claim")
	rootCmd.AddCommand(tokenCmd)
}
