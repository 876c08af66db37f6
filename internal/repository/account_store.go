package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adpilot/internal/models"

	"gorm.io/gorm"
)

// AccountStore 账户、用户与广告指标的 gorm 实现
type AccountStore struct {
	db *gorm.DB
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

// ListActiveAccounts returns every account in active status.
func (s *AccountStore) ListActiveAccounts(ctx context.Context) ([]models.AdAccount, error) {
	var accounts []models.AdAccount
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.AccountStatusActive).
		Order("created_at ASC").
		Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}
	return accounts, nil
}

// ListTodayMetrics returns the daily buckets of an account for the calendar day starting at date.
func (s *AccountStore) ListTodayMetrics(ctx context.Context, accountID string, date time.Time) ([]models.AdDailyMetric, error) {
	var rows []models.AdDailyMetric
	start, end := dayBounds(date)
	if err := s.db.WithContext(ctx).
		Where("account_id = ? AND date >= ? AND date < ?", accountID, start, end).
		Order("ad_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list metrics for account %s: %w", accountID, err)
	}
	return rows, nil
}

// dayBounds 返回 date 所在日历日的 [start, end)，按 date 的时区计算（夏令时当天为 23 或 25 小时），结果转为 UTC
func dayBounds(date time.Time) (time.Time, time.Time) {
	return date.UTC(), date.AddDate(0, 0, 1).UTC()
}

// ListRealtimeSince returns spend samples of an ad recorded at or after since, oldest first.
func (s *AccountStore) ListRealtimeSince(ctx context.Context, adID string, since time.Time) ([]models.SpendSample, error) {
	var rows []models.AdRealtimeMetric
	if err := s.db.WithContext(ctx).
		Where("ad_id = ? AND recorded_at >= ?", adID, since).
		Order("recorded_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list realtime metrics for ad %s: %w", adID, err)
	}
	samples := make([]models.SpendSample, 0, len(rows))
	for _, r := range rows {
		samples = append(samples, models.SpendSample{Spent: r.Spent, Timestamp: r.RecordedAt})
	}
	return samples, nil
}

// ListDailyMetrics returns daily buckets of an ad, optionally limited to dates on or after since.
func (s *AccountStore) ListDailyMetrics(ctx context.Context, adID string, since *time.Time) ([]models.AdDailyMetric, error) {
	var rows []models.AdDailyMetric
	query := s.db.WithContext(ctx).Where("ad_id = ?", adID)
	if since != nil {
		query = query.Where("date >= ?", *since)
	}
	if err := query.Order("date ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list daily metrics for ad %s: %w", adID, err)
	}
	return rows, nil
}

// GetCampaignDailyBudget 查询广告所属计划的日预算；没有计划或未设置时返回 nil
func (s *AccountStore) GetCampaignDailyBudget(ctx context.Context, adID string) (*float64, error) {
	var rows []struct {
		DailyBudget *float64
	}
	if err := s.db.WithContext(ctx).
		Table("ads").
		Select("campaigns.daily_budget").
		Joins("JOIN campaigns ON campaigns.id = ads.campaign_id").
		Where("ads.id = ?", adID).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get daily budget for ad %s: %w", adID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].DailyBudget, nil
}

// GetAccount returns ErrAccountNotFound for unknown ids.
func (s *AccountStore) GetAccount(ctx context.Context, id string) (*models.AdAccount, error) {
	var account models.AdAccount
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return &account, nil
}

// UpdateAccountStatus sets the account status.
func (s *AccountStore) UpdateAccountStatus(ctx context.Context, id, status string) error {
	result := s.db.WithContext(ctx).Model(&models.AdAccount{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update account %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// GetUser returns ErrUserNotFound for unknown ids.
func (s *AccountStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &user, nil
}

// UpdateUserPlan sets the user's plan; ErrUserNotFound for unknown ids.
func (s *AccountStore) UpdateUserPlan(ctx context.Context, id, plan string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("plan", plan)
	if result.Error != nil {
		return fmt.Errorf("failed to update plan of user %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
