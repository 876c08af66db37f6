package handlers

import (
	"net/http"
	"time"

	"adpilot/internal/models"
	"adpilot/internal/repository"
	"adpilot/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ActionLogHandler 审计记录、撤销与节省统计
type ActionLogHandler struct {
	logService     *services.ActionLogService
	savingsService *services.SavingsService
	now            func() time.Time
	logger         *logrus.Logger
}

// NewActionLogHandler 创建审计记录处理器
func NewActionLogHandler(logService *services.ActionLogService, savingsService *services.SavingsService, logger *logrus.Logger) *ActionLogHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ActionLogHandler{logService: logService, savingsService: savingsService, now: time.Now, logger: logger}
}

// RegisterRoutes 注册审计记录路由
func (h *ActionLogHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/action-logs", h.ListActionLogs)
	r.GET("/action-logs/:id", h.GetActionLog)
	r.POST("/action-logs/:id/revert", h.RevertAction)
	r.GET("/savings/history", h.SavingsHistory)
}

// ListActionLogs 分页查询审计记录
// @Summary 审计记录列表
// @Tags 审计
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param status query string false "success/failed/reverted"
// @Param account_id query string false "账户ID"
// @Param rule_id query string false "规则ID"
// @Success 200 {object} PaginatedResponse
// @Router /api/v1/action-logs [get]
func (h *ActionLogHandler) ListActionLogs(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "page_size", 20)
	if !ok {
		return
	}
	status := models.ActionStatus(c.Query("status"))
	switch status {
	case "", models.ActionStatusSuccess, models.ActionStatusFailed, models.ActionStatusReverted:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid status",
			Message: "status must be one of success, failed, reverted",
		})
		return
	}

	filter := repository.ActionLogFilter{
		UserID:    currentUser(c),
		AccountID: c.Query("account_id"),
		RuleID:    c.Query("rule_id"),
		Status:    status,
		Page:      page,
		PageSize:  pageSize,
	}
	logs, total, err := h.logService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "list action logs", err)
		return
	}

	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	c.JSON(http.StatusOK, PaginatedResponse{
		Data:     logs,
		Total:    total,
		Page:     filter.Page,
		PageSize: size,
		Pages:    int((total + int64(size) - 1) / int64(size)),
	})
}

// GetActionLog 获取单条审计记录
// @Router /api/v1/action-logs/{id} [get]
func (h *ActionLogHandler) GetActionLog(c *gin.Context) {
	entry, err := h.logService.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get action log", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// RevertAction 撤销停止动作并恢复广告
// @Summary 撤销
// @Tags 审计
// @Param id path string true "审计记录ID"
// @Success 200 {object} services.RevertResult
// @Failure 404 {object} services.RevertResult
// @Failure 409 {object} services.RevertResult
// @Failure 410 {object} services.RevertResult
// @Router /api/v1/action-logs/{id}/revert [post]
func (h *ActionLogHandler) RevertAction(c *gin.Context) {
	res := h.logService.Undo(c.Request.Context(), currentUser(c), c.Param("id"), h.now())
	c.JSON(revertStatus(res.Reason), res)
}

func revertStatus(reason string) int {
	switch reason {
	case services.RevertOK:
		return http.StatusOK
	case services.RevertNotFound:
		return http.StatusNotFound
	case services.RevertAlreadyReverted:
		return http.StatusConflict
	case services.RevertTimeout:
		return http.StatusGone
	case services.RevertNotStoppable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// SavingsHistory 最近 N 天的节省金额
// @Router /api/v1/savings/history [get]
func (h *ActionLogHandler) SavingsHistory(c *gin.Context) {
	days, ok := queryInt(c, "days", 7)
	if !ok {
		return
	}
	history, err := h.savingsService.History(c.Request.Context(), currentUser(c), days, h.now())
	if err != nil {
		respondError(c, h.logger, "load savings history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}
