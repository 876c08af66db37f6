package services

import (
	"context"
	"fmt"
	"strings"

	"adpilot/internal/models"

	"github.com/sirupsen/logrus"
)

// PlanChange 套餐变更结果
type PlanChange struct {
	UserID           string   `json:"user_id"`
	PreviousPlan     string   `json:"previous_plan"`
	Plan             string   `json:"plan"`
	DeactivatedRules []string `json:"deactivated_rules"`
}

// PlanService changes a user's plan and keeps active rules within the new allowance.
type PlanService struct {
	users  PlanStore
	rules  *RuleService
	logger *logrus.Logger
}

// NewPlanService 创建套餐服务
func NewPlanService(users PlanStore, rules *RuleService, logger *logrus.Logger) *PlanService {
	if logger == nil {
		logger = logrus.New()
	}
	return &PlanService{users: users, rules: rules, logger: logger}
}

// ChangePlan stores the new plan, then deactivates the newest active rules beyond its limit.
func (s *PlanService) ChangePlan(ctx context.Context, userID, plan string) (*PlanChange, error) {
	plan = strings.ToLower(strings.TrimSpace(plan))
	switch plan {
	case models.PlanFree, models.PlanPro, models.PlanAgency:
	default:
		return nil, fmt.Errorf("%w: unknown plan %q", ErrInvalidInput, plan)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateUserPlan(ctx, userID, plan); err != nil {
		return nil, err
	}
	change := &PlanChange{UserID: userID, PreviousPlan: user.Plan, Plan: plan, DeactivatedRules: []string{}}

	ids, err := s.rules.EnforcePlanLimit(ctx, userID, plan)
	if err != nil {
		return nil, fmt.Errorf("enforce plan limit: %w", err)
	}
	if len(ids) > 0 {
		change.DeactivatedRules = ids
	}
	s.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"from":        user.Plan,
		"to":          plan,
		"deactivated": len(ids),
	}).Info("plan changed")
	return change, nil
}
