package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring" yaml:"monitoring"`
	Security     SecurityConfig     `mapstructure:"security" yaml:"security"`
	Engine       EngineConfig       `mapstructure:"engine" yaml:"engine"`
	AdPlatform   AdPlatformConfig   `mapstructure:"ad_platform" yaml:"ad_platform"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Plans        PlansConfig        `mapstructure:"plans" yaml:"plans"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // postgres, sqlite
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password"`
	Name            string        `mapstructure:"name" yaml:"name"`
	SQLitePath      string        `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// DSN 构建 Postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port,
	)
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	Output     string `mapstructure:"output" yaml:"output"` // stdout, file, both
	FilePath   string `mapstructure:"file_path" yaml:"file_path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // MB
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // days
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // number of backup files
	Compress   bool   `mapstructure:"compress" yaml:"compress"`       // compress backup files
}

type MonitoringConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath string        `mapstructure:"metrics_path" yaml:"metrics_path"`
	Tracing     TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// TracingConfig OpenTelemetry 追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`         // OTLP gRPC 端点，例如 http://otel-collector:4317
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`         // 是否使用明文（本地/开发）
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"` // 采样率 0.0~1.0
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"` // 缺省使用 "adpilot"
}

type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors" yaml:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	JWT          JWTConfig          `mapstructure:"jwt" yaml:"jwt"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int  `mapstructure:"burst" yaml:"burst"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret"`
	Issuer string `mapstructure:"issuer" yaml:"issuer"`
}

// EngineConfig 规则引擎调度配置
type EngineConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	Timezone         string        `mapstructure:"timezone" yaml:"timezone"`
	FastSpendWindow  time.Duration `mapstructure:"fast_spend_window" yaml:"fast_spend_window"`
	MinSamplesWindow time.Duration `mapstructure:"min_samples_window" yaml:"min_samples_window"`
	RevertWindow     time.Duration `mapstructure:"revert_window" yaml:"revert_window"`
}

// Location 解析时区，失败时回退 UTC
func (e EngineConfig) Location() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type AdPlatformConfig struct {
	BaseURL           string               `mapstructure:"base_url" yaml:"base_url"`
	TokenURL          string               `mapstructure:"token_url" yaml:"token_url"`
	ClientID          string               `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret      string               `mapstructure:"client_secret" yaml:"client_secret"`
	Timeout           time.Duration        `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries        int                  `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay        time.Duration        `mapstructure:"retry_delay" yaml:"retry_delay"`
	RequestsPerSecond float64              `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	TokenCacheTTL     time.Duration        `mapstructure:"token_cache_ttl" yaml:"token_cache_ttl"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxFailures     int           `mapstructure:"max_failures" yaml:"max_failures"`
	ResetTimeout    time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
	HalfOpenMaxReqs int           `mapstructure:"half_open_max_requests" yaml:"half_open_max_requests"`
}

type NotificationConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	TelegramBotToken string        `mapstructure:"telegram_bot_token" yaml:"telegram_bot_token"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PlansConfig 各套餐允许的规则数量，<=0 表示不限
type PlansConfig struct {
	FreeRuleLimit   int `mapstructure:"free_rule_limit" yaml:"free_rule_limit"`
	ProRuleLimit    int `mapstructure:"pro_rule_limit" yaml:"pro_rule_limit"`
	AgencyRuleLimit int `mapstructure:"agency_rule_limit" yaml:"agency_rule_limit"`
}

// RuleLimit 返回套餐允许的规则数，0 表示不限；未知套餐按 free 处理
func (p PlansConfig) RuleLimit(plan string) int {
	switch strings.ToLower(plan) {
	case "pro":
		return p.ProRuleLimit
	case "agency":
		return p.AgencyRuleLimit
	default:
		return p.FreeRuleLimit
	}
}

// Load 在默认配置之上合并 viper 中读到的配置
func Load() *Config {
	config := GetDefaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		panic(err)
	}
	return config
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "password",
			Name:            "adpilot",
			SQLitePath:      "./data/adpilot.db",
			MaxOpenConns:    50,
			MaxIdleConns:    10,
			ConnMaxLifetime: 3600 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "./logs/adpilot.log",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
			Compress:   true,
		},
		Monitoring: MonitoringConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
			Tracing: TracingConfig{
				Enabled:     false,
				Endpoint:    "http://localhost:4317",
				Insecure:    true,
				SampleRatio: 0.1,
				ServiceName: "adpilot",
			},
		},
		Security: SecurityConfig{
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
			},
			RateLimiting: RateLimitingConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             20,
			},
			JWT: JWTConfig{
				Secret: "default-secret-key",
				Issuer: "adpilot",
			},
		},
		Engine: EngineConfig{
			Enabled:          true,
			SweepInterval:    5 * time.Minute,
			Timezone:         "UTC",
			FastSpendWindow:  15 * time.Minute,
			MinSamplesWindow: 24 * time.Hour,
			RevertWindow:     5 * time.Minute,
		},
		AdPlatform: AdPlatformConfig{
			BaseURL:           "https://ads.example.com/api",
			TokenURL:          "https://ads.example.com/oauth/token",
			Timeout:           15 * time.Second,
			MaxRetries:        2,
			RetryDelay:        500 * time.Millisecond,
			RequestsPerSecond: 3,
			TokenCacheTTL:     30 * time.Minute,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:         true,
				MaxFailures:     5,
				ResetTimeout:    60 * time.Second,
				HalfOpenMaxReqs: 1,
			},
		},
		Notification: NotificationConfig{
			Enabled:    true,
			MaxRetries: 3,
			RetryDelay: time.Second,
			Timeout:    10 * time.Second,
		},
		Plans: PlansConfig{
			FreeRuleLimit:   3,
			ProRuleLimit:    20,
			AgencyRuleLimit: 0,
		},
	}
}
