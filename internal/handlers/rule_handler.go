package handlers

import (
	"net/http"

	"adpilot/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RuleHandler 规则管理处理器
type RuleHandler struct {
	ruleService *services.RuleService
	logger      *logrus.Logger
}

// NewRuleHandler 创建规则处理器
func NewRuleHandler(ruleService *services.RuleService, logger *logrus.Logger) *RuleHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RuleHandler{ruleService: ruleService, logger: logger}
}

// RegisterRoutes 注册规则路由
func (h *RuleHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/rules", h.ListRules)
	r.POST("/rules", h.CreateRule)
	r.GET("/rules/:id", h.GetRule)
	r.PUT("/rules/:id", h.UpdateRule)
	r.DELETE("/rules/:id", h.DeleteRule)
	r.POST("/rules/:id/toggle", h.ToggleRule)
}

// CreateRule 创建规则
// @Summary 创建规则
// @Tags 规则
// @Accept json
// @Produce json
// @Param rule body services.RuleInput true "规则"
// @Success 201 {object} models.Rule
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/rules [post]
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req services.RuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	rule, err := h.ruleService.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		respondError(c, h.logger, "create rule", err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// ListRules 当前用户的规则列表
// @Router /api/v1/rules [get]
func (h *RuleHandler) ListRules(c *gin.Context) {
	rules, err := h.ruleService.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, "list rules", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rules, "total": len(rules)})
}

// GetRule 获取规则详情
// @Router /api/v1/rules/{id} [get]
func (h *RuleHandler) GetRule(c *gin.Context) {
	rule, err := h.ruleService.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get rule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateRule 更新规则
// @Summary 更新规则
// @Tags 规则
// @Param id path string true "规则ID"
// @Param rule body services.RuleInput true "规则"
// @Success 200 {object} models.Rule
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/rules/{id} [put]
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	var req services.RuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}
	rule, err := h.ruleService.Update(c.Request.Context(), currentUser(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, "update rule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *RuleHandler) ToggleRule(c *gin.Context) {
	rule, err := h.ruleService.Toggle(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "toggle rule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule 删除规则
// @Router /api/v1/rules/{id} [delete]
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	if err := h.ruleService.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, h.logger, "delete rule", err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Rule deleted successfully"})
}
