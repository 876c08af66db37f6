package handlers

import (
	"net/http"

	"adpilot/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccountHandler 广告账户处理器
type AccountHandler struct {
	accountService *services.AccountService
	logger         *logrus.Logger
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(accountService *services.AccountService, logger *logrus.Logger) *AccountHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AccountHandler{accountService: accountService, logger: logger}
}

// DisconnectAccount 断开账户并删除其审计记录
// @Summary 断开广告账户
// @Tags 账户
// @Param id path string true "账户ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/accounts/{id}/disconnect [post]
func (h *AccountHandler) DisconnectAccount(c *gin.Context) {
	deleted, err := h.accountService.DisconnectAccount(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "disconnect account", err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Account disconnected",
		Data:    gin.H{"deleted_action_logs": deleted},
	})
}
