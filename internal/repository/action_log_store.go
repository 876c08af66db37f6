package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adpilot/internal/models"

	"gorm.io/gorm"
)

// ActionLogFilter 审计记录查询条件
type ActionLogFilter struct {
	UserID    string
	AccountID string
	RuleID    string
	Status    models.ActionStatus
	Page      int
	PageSize  int
}

// ActionLogStore 审计记录存储
type ActionLogStore struct {
	db *gorm.DB
}

// NewActionLogStore creates a new ActionLogStore.
func NewActionLogStore(db *gorm.DB) *ActionLogStore {
	return &ActionLogStore{db: db}
}

// CreateActionLog inserts a new action log.
func (s *ActionLogStore) CreateActionLog(ctx context.Context, log *models.ActionLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create action log: %w", err)
	}
	return nil
}

// GetActionLog returns ErrActionLogNotFound for unknown ids.
func (s *ActionLogStore) GetActionLog(ctx context.Context, id string) (*models.ActionLog, error) {
	var log models.ActionLog
	if err := s.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActionLogNotFound
		}
		return nil, fmt.Errorf("failed to get action log %s: %w", id, err)
	}
	return &log, nil
}

// MarkReverted moves a log to reverted in one conditional UPDATE.
// It reports false when the log was already reverted (or vanished) by the time the update ran.
func (s *ActionLogStore) MarkReverted(ctx context.Context, id, revertedBy string, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.ActionLog{}).
		Where("id = ? AND status <> ?", id, models.ActionStatusReverted).
		Updates(map[string]interface{}{
			"status":      models.ActionStatusReverted,
			"reverted_at": at,
			"reverted_by": revertedBy,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to revert action log %s: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListActionLogs returns one page of logs, newest first, and the total count.
func (s *ActionLogStore) ListActionLogs(ctx context.Context, filter ActionLogFilter) ([]models.ActionLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ActionLog{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.AccountID != "" {
		query = query.Where("account_id = ?", filter.AccountID)
	}
	if filter.RuleID != "" {
		query = query.Where("rule_id = ?", filter.RuleID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count action logs: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	var logs []models.ActionLog
	if err := query.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list action logs: %w", err)
	}
	return logs, total, nil
}

// ListActionLogsSince returns the user's logs created at or after since.
func (s *ActionLogStore) ListActionLogsSince(ctx context.Context, userID string, since time.Time) ([]models.ActionLog, error) {
	var logs []models.ActionLog
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list action logs since %s: %w", since.Format(time.RFC3339), err)
	}
	return logs, nil
}

// DeleteActionLogsByAccount removes every log of a disconnected account.
func (s *ActionLogStore) DeleteActionLogsByAccount(ctx context.Context, accountID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.ActionLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete action logs of account %s: %w", accountID, result.Error)
	}
	return result.RowsAffected, nil
}
