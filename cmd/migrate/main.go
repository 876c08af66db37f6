package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"adpilot/internal/config"
	"adpilot/internal/models"
	"adpilot/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	cfgFile  string
	withSeed bool
)

func main() {
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Create or update the adpilot schema",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				viper.SetConfigFile(cfgFile)
			} else {
				viper.AddConfigPath(".")
				viper.SetConfigName("config")
				viper.SetConfigType("yaml")
			}
			viper.SetEnvPrefix("adpilot")
			viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			viper.AutomaticEnv()
			for _, key := range []string{"database.driver", "database.host", "database.password", "database.sqlite_path"} {
				_ = viper.BindEnv(key)
			}
			if err := viper.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return fmt.Errorf("read config: %w", err)
				}
			}
			return migrate(config.Load(), withSeed)
		},
	}
	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yml)")
	cmd.Flags().BoolVar(&withSeed, "seed", false, "insert a demo user, account, ad and rule")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrate(cfg *config.Config, seed bool) error {
	if err := config.InitLogger(cfg); err != nil {
		return err
	}
	log := logrus.StandardLogger()

	// 连接数据库
	db, err := repository.Open(cfg, logger.Info)
	if err != nil {
		return err
	}

	log.Info("Starting database migration...")
	if err := repository.Migrate(db); err != nil {
		return err
	}
	log.Info("Database migration completed successfully!")

	// 创建索引
	log.Info("Creating additional indexes...")
	for _, stmt := range []string{
		// 撤销与节省统计按用户和时间查询
		"CREATE INDEX IF NOT EXISTS idx_action_logs_user_status_created ON action_logs(user_id, status, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_action_logs_account ON action_logs(account_id)",
		// 巡检按账户和日期读取当天数据
		"CREATE INDEX IF NOT EXISTS idx_ad_accounts_status ON ad_accounts(status)",
		"CREATE INDEX IF NOT EXISTS idx_ads_campaign ON ads(campaign_id)",
	} {
		if err := db.Exec(stmt).Error; err != nil {
			log.Warnf("Failed to create index: %v", err)
		}
	}
	log.Info("Additional indexes created successfully!")

	if seed {
		if err := seedDemo(db, time.Now().UTC()); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info("Demo data inserted")
	}
	return nil
}

// seedDemo 写入一套可被 cpl_limit 规则命中的演示数据
func seedDemo(db *gorm.DB, now time.Time) error {
	budget := 1000.0
	userID := "demo-user"
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return db.Transaction(func(tx *gorm.DB) error {
		rows := []interface{}{
			&models.User{ID: userID, Email: "demo@adpilot.local", Name: "Demo", Plan: models.PlanPro},
			&models.AdAccount{ID: "demo-account", UserID: userID, PlatformAccountID: "act_demo", Name: "Demo account", Status: models.AccountStatusActive},
			&models.Campaign{ID: "demo-campaign", AccountID: "demo-account", Name: "Demo campaign", DailyBudget: &budget},
			&models.Ad{ID: "demo-ad", AccountID: "demo-account", CampaignID: "demo-campaign", Name: "Demo ad", Status: "active"},
		}
		for _, row := range rows {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
				return err
			}
		}
		metric := &models.AdDailyMetric{
			AccountID:   "demo-account",
			CampaignID:  "demo-campaign",
			AdID:        "demo-ad",
			AdName:      "Demo ad",
			Date:        day,
			Spent:       1200,
			Leads:       2,
			Impressions: 40000,
			Clicks:      300,
		}
		if err := tx.Create(metric).Error; err != nil {
			return err
		}
		rule := &models.Rule{
			ID:             uuid.NewString(),
			UserID:         userID,
			Name:           "CPL above 500",
			Type:           models.RuleTypeCPLLimit,
			Conditions:     models.RuleConditions{Metric: "cpl", Operator: ">", Threshold: 500},
			Actions:        models.RuleActions{StopAd: true, Notify: true},
			TargetAccounts: []string{"demo-account"},
			IsActive:       true,
		}
		return tx.Create(rule).Error
	})
}
