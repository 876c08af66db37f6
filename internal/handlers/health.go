package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"adpilot/internal/config"
	"adpilot/pkg/adplatform"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Pinger 数据库连通性检查（*sql.DB 满足）
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BreakerReporter exposes the ad platform circuit breaker state.
type BreakerReporter interface {
	BreakerState() adplatform.BreakerState
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	config   *config.Config
	db       Pinger
	platform BreakerReporter
	version  string
	started  time.Time
	logger   *logrus.Logger
}

// NewHealthHandler 创建健康检查处理器；db 或 platform 为空时跳过对应检查
func NewHealthHandler(cfg *config.Config, db Pinger, platform BreakerReporter, version string) *HealthHandler {
	return &HealthHandler{
		config:   cfg,
		db:       db,
		platform: platform,
		version:  version,
		started:  time.Now(),
		logger:   logrus.StandardLogger(),
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]ServiceInfo `json:"services"`
	System    SystemInfo             `json:"system"`
}

// ServiceInfo 服务信息
type ServiceInfo struct {
	Status  string      `json:"status"`
	Latency string      `json:"latency,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SystemInfo 系统信息
type SystemInfo struct {
	Uptime    string `json:"uptime"`
	GoVersion string `json:"go_version"`
}

// Health 健康检查端点
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now(),
		Services:  make(map[string]ServiceInfo),
		System: SystemInfo{
			Uptime:    time.Since(h.started).Round(time.Second).String(),
			GoVersion: runtime.Version(),
		},
	}

	dbOK := h.checkDatabase(ctx, &response)
	platformOK := h.checkAdPlatform(&response)
	h.checkNotifications(&response)

	// 数据库不可用则整体不可用；平台熔断只算降级
	statusCode := http.StatusOK
	switch {
	case !dbOK:
		response.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	case !platformOK:
		response.Status = "degraded"
	}
	c.JSON(statusCode, response)
}

// Ready 就绪检查端点，只检查数据库
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	ready := true
	services := map[string]string{"database": "ready"}
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warnf("readiness: database ping failed: %v", err)
			services["database"] = "not_ready"
			ready = false
		}
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, gin.H{
		"ready":     ready,
		"timestamp": time.Now(),
		"services":  services,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context, response *HealthResponse) bool {
	if h.db == nil {
		return true
	}
	start := time.Now()
	info := ServiceInfo{
		Status:  "healthy",
		Details: gin.H{"driver": h.config.Database.Driver},
	}
	err := h.db.PingContext(ctx)
	info.Latency = time.Since(start).String()
	if err != nil {
		info.Status = "unhealthy"
		info.Error = err.Error()
	}
	response.Services["database"] = info
	return err == nil
}

func (h *HealthHandler) checkAdPlatform(response *HealthResponse) bool {
	if h.platform == nil {
		return true
	}
	state := h.platform.BreakerState()
	info := ServiceInfo{Status: "healthy", Details: gin.H{"circuit_breaker": state.String()}}
	if state == adplatform.BreakerOpen {
		info.Status = "degraded"
		info.Error = "circuit breaker open"
	}
	response.Services["ad_platform"] = info
	return state != adplatform.BreakerOpen
}

func (h *HealthHandler) checkNotifications(response *HealthResponse) {
	status := "disabled"
	if h.config.Notification.Enabled {
		status = "healthy"
		if h.config.Notification.TelegramBotToken == "" {
			status = "misconfigured"
		}
	}
	response.Services["notifications"] = ServiceInfo{Status: status}
}
