package handlers

import (
	"net/http"

	"adpilot/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UserHandler 用户套餐处理器
type UserHandler struct {
	planService *services.PlanService
	logger      *logrus.Logger
}

// NewUserHandler 创建用户处理器
func NewUserHandler(planService *services.PlanService, logger *logrus.Logger) *UserHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UserHandler{planService: planService, logger: logger}
}

// ChangePlanRequest 套餐变更请求
type ChangePlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// ChangePlan 变更当前用户套餐，降级时停用超出额度的规则
// @Summary 变更套餐
// @Tags 用户
// @Accept json
// @Produce json
// @Param body body ChangePlanRequest true "套餐"
// @Success 200 {object} services.PlanChange
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/me/plan [put]
func (h *UserHandler) ChangePlan(c *gin.Context) {
	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}
	change, err := h.planService.ChangePlan(c.Request.Context(), currentUser(c), req.Plan)
	if err != nil {
		respondError(c, h.logger, "change plan", err)
		return
	}
	c.JSON(http.StatusOK, change)
}
