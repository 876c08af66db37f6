package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"adpilot/internal/middleware"
	"adpilot/internal/repository"
	"adpilot/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
}

// SuccessResponse 成功响应结构
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func currentUser(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

// respondError maps service and repository errors onto HTTP statuses.
func respondError(c *gin.Context, logger *logrus.Logger, action string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRule), errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
	case errors.Is(err, services.ErrRuleLimitReached):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "Plan limit reached", Message: err.Error()})
	case errors.Is(err, repository.ErrRuleNotFound),
		errors.Is(err, repository.ErrActionLogNotFound),
		errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found", Message: err.Error()})
	default:
		logger.Errorf("Failed to %s: %v", action, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to " + action,
			Message: err.Error(),
		})
	}
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid " + key,
			Message: key + " must be a valid number",
		})
		return 0, false
	}
	return v, true
}
