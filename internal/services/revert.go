package services

import (
	"context"
	"errors"
	"time"

	"adpilot/internal/metrics"
	"adpilot/internal/models"
	"adpilot/internal/repository"

	"github.com/sirupsen/logrus"
)

// Revert reasons.
const (
	RevertOK              = "ok"
	RevertNotFound        = "not_found"
	RevertAlreadyReverted = "already_reverted"
	RevertTimeout         = "timeout"
	RevertNotStoppable    = "not_stoppable"
	RevertStoreError      = "store_error"
)

// DefaultRevertWindow 撤销窗口
const DefaultRevertWindow = 5 * time.Minute

// RevertResult 撤销结果；失败不以 error 形式返回
type RevertResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
}

// Reverter undoes stop actions within the revert window.
type Reverter struct {
	logs    ActionLogStore
	window  time.Duration
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewReverter 创建撤销服务；window<=0 时使用 5 分钟
func NewReverter(logs ActionLogStore, window time.Duration, m *metrics.Metrics, logger *logrus.Logger) *Reverter {
	if window <= 0 {
		window = DefaultRevertWindow
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Reverter{logs: logs, window: window, metrics: m, logger: logger}
}

// Revert checks, in order: existence, already reverted, window expiry, something to undo.
// Only then is the log moved to reverted.
func (r *Reverter) Revert(ctx context.Context, actionLogID, revertedBy string, now time.Time) RevertResult {
	res := r.revert(ctx, actionLogID, revertedBy, now)
	r.metrics.IncRevert(res.Reason)
	return res
}

func (r *Reverter) revert(ctx context.Context, id, revertedBy string, now time.Time) RevertResult {
	log := r.logger.WithFields(logrus.Fields{"action_log_id": id, "reverted_by": revertedBy})

	entry, err := r.logs.GetActionLog(ctx, id)
	if errors.Is(err, repository.ErrActionLogNotFound) || (err == nil && entry == nil) {
		return RevertResult{Reason: RevertNotFound}
	}
	if err != nil {
		log.Errorf("revert: load action log failed: %v", err)
		return RevertResult{Reason: RevertStoreError}
	}

	if entry.Status == models.ActionStatusReverted {
		return RevertResult{Reason: RevertAlreadyReverted}
	}
	if now.Sub(entry.CreatedAt) > r.window {
		return RevertResult{Reason: RevertTimeout}
	}
	// 仅通知或停止失败的记录没有可撤销的动作
	if entry.ActionType == models.ActionTypeNotified || entry.Status == models.ActionStatusFailed {
		return RevertResult{Reason: RevertNotStoppable}
	}

	changed, err := r.logs.MarkReverted(ctx, id, revertedBy, now)
	if err != nil {
		log.Errorf("revert: update action log failed: %v", err)
		return RevertResult{Reason: RevertStoreError}
	}
	if !changed {
		// 并发撤销已先一步完成
		return RevertResult{Reason: RevertAlreadyReverted}
	}
	log.Info("revert: action log reverted")
	return RevertResult{Success: true, Reason: RevertOK}
}
