package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
)

// envKeys 不在配置文件中也可通过环境变量设置的键
var envKeys = []string{
	"database.driver",
	"database.host",
	"database.port",
	"database.user",
	"database.password",
	"database.name",
	"database.sqlite_path",
	"security.jwt.secret",
	"ad_platform.base_url",
	"ad_platform.client_id",
	"ad_platform.client_secret",
	"notification.telegram_bot_token",
	"monitoring.tracing.endpoint",
	"log.level",
}

var rootCmd = &cobra.Command{
	Use:   "adpilot",
	Short: "Rule automation backend for ad accounts",
	Long: `adpilot evaluates user-defined rules against ad metrics, stops or
flags ads that break them, and keeps an auditable, revertible action log.`,
	SilenceUsage: true,
}

// Execute 命令行入口
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// ADPILOT_DATABASE_HOST -> database.host
	viper.SetEnvPrefix("adpilot")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Println("Error reading config file:", err)
		}
	}
}
