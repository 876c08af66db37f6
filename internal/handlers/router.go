package handlers

import (
	"adpilot/internal/config"
	"adpilot/internal/metrics"
	"adpilot/internal/middleware"
	"adpilot/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config   *config.Config
	Rules    *RuleHandler
	Logs     *ActionLogHandler
	Accounts *AccountHandler
	Users    *UserHandler
	Health   *HealthHandler
	Feed     gin.HandlerFunc
	Metrics  *metrics.Metrics
	Logger   *logrus.Logger
}

// SetupRouter builds the gin engine with the /api/v1 routes.
func SetupRouter(d RouterDeps) *gin.Engine {
	cfg := d.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(d.Logger))
	if cfg.Monitoring.Tracing.Enabled {
		r.Use(otelgin.Middleware(serviceName(cfg)))
	}
	r.Use(middleware.CORSMiddleware(cfg.Security.CORS))

	if d.Health != nil {
		r.GET("/health", d.Health.Health)
		r.GET("/ready", d.Health.Ready)
	}
	if cfg.Monitoring.Enabled && d.Metrics != nil {
		path := cfg.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(d.Metrics.Handler()))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.Security.JWT))
	api.Use(middleware.RateLimitMiddleware(cfg.Security.RateLimiting, "/api/v1", d.Metrics))
	if d.Rules != nil {
		d.Rules.RegisterRoutes(api)
	}
	if d.Logs != nil {
		d.Logs.RegisterRoutes(api)
	}
	if d.Accounts != nil {
		api.POST("/accounts/:id/disconnect", d.Accounts.DisconnectAccount)
	}
	if d.Users != nil {
		api.PUT("/users/me/plan", d.Users.ChangePlan)
	}
	if d.Feed != nil {
		api.GET("/ws/actions", d.Feed)
	}
	return r
}

func serviceName(cfg *config.Config) string {
	if cfg.Monitoring.Tracing.ServiceName != "" {
		return cfg.Monitoring.Tracing.ServiceName
	}
	return observability.InstrumentationName
}

// requestLogger 访问日志
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
			"ip":     c.ClientIP(),
		})
		if uid := c.GetString(middleware.ContextUserID); uid != "" {
			entry = entry.WithField("user_id", uid)
		}
		if c.Writer.Status() >= 500 {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}
