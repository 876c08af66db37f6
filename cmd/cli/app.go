package cli

import (
	"fmt"

	"adpilot/internal/config"
	"adpilot/internal/handlers"
	"adpilot/internal/metrics"
	"adpilot/internal/notify"
	"adpilot/internal/repository"
	"adpilot/internal/services"
	"adpilot/pkg/adplatform"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// application 组装好的全部组件
type application struct {
	cfg     *config.Config
	db      *gorm.DB
	metrics *metrics.Metrics
	client  *adplatform.Client
	hub     *services.ActionFeedHub
	engine  *services.RuleEngine
	worker  *services.SweepWorker
	plans   *services.PlanService
	router  *handlers.RouterDeps
	logger  *logrus.Logger
}

// newApplication opens the database and wires stores, services and handlers.
func newApplication(cfg *config.Config, log *logrus.Logger) (*application, error) {
	gormLevel := logger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		gormLevel = logger.Info
	}
	db, err := repository.Open(cfg, gormLevel)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, err
	}

	accounts := repository.NewAccountStore(db)
	rules := repository.NewRuleStore(db)
	logs := repository.NewActionLogStore(db)
	tokens := repository.NewTokenStore(db)
	m := metrics.New()

	client := adplatform.NewClient(platformConfig(cfg.AdPlatform), tokens, log)

	// 未启用通知时保持接口为 nil
	var notifier services.Notifier
	if cfg.Notification.Enabled {
		tg := notify.NewTelegramNotifier(cfg.Notification, accounts, log)
		if err := tg.ValidateConfig(); err != nil {
			log.Warnf("notifications disabled: %v", err)
		} else {
			notifier = tg
		}
	}

	hub := services.NewActionFeedHub(cfg.Security.CORS.AllowedOrigins, m, log)
	engine := services.NewRuleEngine(cfg.Engine, services.RuleEngineDeps{
		Accounts:  accounts,
		Rules:     rules,
		Logs:      logs,
		Platform:  client,
		Notifier:  notifier,
		Publisher: hub,
		Metrics:   m,
		Logger:    log,
	})
	worker := services.NewSweepWorker(engine, cfg.Engine.SweepInterval, log)

	reverter := services.NewReverter(logs, cfg.Engine.RevertWindow, m, log)
	logService := services.NewActionLogService(logs, reverter, client, log)
	savings := services.NewSavingsService(logs, cfg.Engine.Location())
	accountService := services.NewAccountService(accounts, logs, log)
	ruleService := services.NewRuleService(rules, accounts, cfg.Plans, log)
	planService := services.NewPlanService(accounts, ruleService, log)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	return &application{
		cfg:     cfg,
		db:      db,
		metrics: m,
		client:  client,
		hub:     hub,
		engine:  engine,
		worker:  worker,
		plans:   planService,
		router: &handlers.RouterDeps{
			Config:   cfg,
			Rules:    handlers.NewRuleHandler(ruleService, log),
			Logs:     handlers.NewActionLogHandler(logService, savings, log),
			Accounts: handlers.NewAccountHandler(accountService, log),
			Users:    handlers.NewUserHandler(planService, log),
			Health:   handlers.NewHealthHandler(cfg, sqlDB, client, Version),
			Feed:     hub.HandleWebSocket,
			Metrics:  m,
			Logger:   log,
		},
		logger: log,
	}, nil
}

// Close 关闭数据库连接
func (a *application) Close() {
	sqlDB, err := a.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		a.logger.Warnf("close database: %v", err)
	}
}

func platformConfig(c config.AdPlatformConfig) *adplatform.Config {
	pc := adplatform.DefaultConfig()
	if c.BaseURL != "" {
		pc.BaseURL = c.BaseURL
	}
	if c.TokenURL != "" {
		pc.TokenURL = c.TokenURL
	}
	pc.ClientID = c.ClientID
	pc.ClientSecret = c.ClientSecret
	if c.Timeout > 0 {
		pc.Timeout = c.Timeout
	}
	if c.MaxRetries >= 0 {
		pc.MaxRetries = c.MaxRetries
	}
	if c.RetryDelay > 0 {
		pc.RetryDelay = c.RetryDelay
	}
	if c.RequestsPerSecond > 0 {
		pc.RequestsPerSecond = c.RequestsPerSecond
	}
	if c.TokenCacheTTL > 0 {
		pc.TokenCacheTTL = c.TokenCacheTTL
	}
	pc.Breaker = adplatform.BreakerConfig{
		Enabled:         c.CircuitBreaker.Enabled,
		MaxFailures:     c.CircuitBreaker.MaxFailures,
		ResetTimeout:    c.CircuitBreaker.ResetTimeout,
		HalfOpenMaxReqs: c.CircuitBreaker.HalfOpenMaxReqs,
	}
	return pc
}
