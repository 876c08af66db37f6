package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adpilot/internal/models"

	"gorm.io/gorm"
)

// RuleStore 规则存储
type RuleStore struct {
	db *gorm.DB
}

// NewRuleStore creates a new RuleStore.
func NewRuleStore(db *gorm.DB) *RuleStore {
	return &RuleStore{db: db}
}

// ListActiveRules returns the user's active rules, oldest first.
func (s *RuleStore) ListActiveRules(ctx context.Context, userID string) ([]models.Rule, error) {
	var rules []models.Rule
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list active rules for user %s: %w", userID, err)
	}
	return rules, nil
}

// IncrementTriggerCount bumps trigger_count in a single UPDATE so concurrent sweeps never lose increments.
func (s *RuleStore) IncrementTriggerCount(ctx context.Context, ruleID string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Rule{}).
		Where("id = ?", ruleID).
		UpdateColumns(map[string]interface{}{
			"trigger_count":     gorm.Expr("trigger_count + ?", 1),
			"last_triggered_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment trigger count of rule %s: %w", ruleID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// CreateRule creates a new rule.
func (s *RuleStore) CreateRule(ctx context.Context, rule *models.Rule) error {
	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// GetRule returns ErrRuleNotFound for unknown ids.
func (s *RuleStore) GetRule(ctx context.Context, id string) (*models.Rule, error) {
	var rule models.Rule
	if err := s.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule %s: %w", id, err)
	}
	return &rule, nil
}

// ListRules returns all rules of a user, newest first.
func (s *RuleStore) ListRules(ctx context.Context, userID string) ([]models.Rule, error) {
	var rules []models.Rule
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules for user %s: %w", userID, err)
	}
	return rules, nil
}

// UpdateRule writes the user-editable fields. Counters are left untouched.
func (s *RuleStore) UpdateRule(ctx context.Context, rule *models.Rule) error {
	result := s.db.WithContext(ctx).
		Model(rule).
		Select("name", "type", "conditions", "actions", "target_accounts", "target_campaigns", "target_ads", "is_active").
		Updates(rule)
	if result.Error != nil {
		return fmt.Errorf("failed to update rule %s: %w", rule.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// DeleteRule deletes a rule; its action logs are kept.
func (s *RuleStore) DeleteRule(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Rule{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// CountActiveRules counts the user's active rules.
func (s *RuleStore) CountActiveRules(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&models.Rule{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count rules for user %s: %w", userID, err)
	}
	return n, nil
}

// SetRulesActive toggles is_active for the given ids.
func (s *RuleStore) SetRulesActive(ctx context.Context, ids []string, active bool) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Model(&models.Rule{}).
		Where("id IN ?", ids).
		Update("is_active", active).Error; err != nil {
		return fmt.Errorf("failed to set active=%t on %d rules: %w", active, len(ids), err)
	}
	return nil
}
