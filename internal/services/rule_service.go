package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adpilot/internal/config"
	"adpilot/internal/models"
	"adpilot/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxRuleNameLength = 100

// RuleInput 创建/更新规则的请求体
type RuleInput struct {
	Name            string                `json:"name" binding:"required"`
	Type            models.RuleType       `json:"type" binding:"required"`
	Conditions      models.RuleConditions `json:"conditions"`
	Actions         models.RuleActions    `json:"actions"`
	TargetAccounts  []string              `json:"target_accounts"`
	TargetCampaigns []string              `json:"target_campaigns"`
	TargetAds       []string              `json:"target_ads"`
	IsActive        *bool                 `json:"is_active"`
}

// RuleService 规则管理（校验、套餐限制）
type RuleService struct {
	rules  RuleRepository
	users  UserStore
	plans  config.PlansConfig
	logger *logrus.Logger
	newID  func() string
}

// NewRuleService 创建规则服务
func NewRuleService(rules RuleRepository, users UserStore, plans config.PlansConfig, logger *logrus.Logger) *RuleService {
	if logger == nil {
		logger = logrus.New()
	}
	return &RuleService{rules: rules, users: users, plans: plans, logger: logger, newID: uuid.NewString}
}

// ValidateRuleInput checks ranges and required fields, and fills the metric/operator implied by the type.
func ValidateRuleInput(in *RuleInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if len(in.Name) > maxRuleNameLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrInvalidRule, maxRuleNameLength)
	}
	if !in.Type.IsKnown() {
		return fmt.Errorf("%w: unknown rule type %q", ErrInvalidRule, in.Type)
	}

	th := in.Conditions.Threshold
	if th < 0 {
		return fmt.Errorf("%w: threshold must not be negative", ErrInvalidRule)
	}
	if (in.Type == models.RuleTypeMinCTR || in.Type == models.RuleTypeFastSpend) && th > 100 {
		return fmt.Errorf("%w: threshold is a percentage and must not exceed 100", ErrInvalidRule)
	}
	if in.Conditions.MinSamples != nil && *in.Conditions.MinSamples < 1 {
		return fmt.Errorf("%w: min_samples must be at least 1", ErrInvalidRule)
	}
	switch in.Conditions.TimeWindow {
	case "", models.TimeWindowDaily, models.TimeWindow24h, models.TimeWindowSinceLaunch:
	default:
		return fmt.Errorf("%w: unknown time window %q", ErrInvalidRule, in.Conditions.TimeWindow)
	}

	in.TargetAccounts = compactIDs(in.TargetAccounts)
	in.TargetCampaigns = compactIDs(in.TargetCampaigns)
	in.TargetAds = compactIDs(in.TargetAds)
	if len(in.TargetAccounts) == 0 {
		return fmt.Errorf("%w: at least one target account is required", ErrInvalidRule)
	}
	if !in.Actions.StopAd && !in.Actions.Notify {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidRule)
	}

	in.Conditions.Metric, in.Conditions.Operator = conditionShape(in.Type)
	return nil
}

// conditionShape 每种规则类型对应的指标与比较符（仅用于展示）
func conditionShape(t models.RuleType) (metric, operator string) {
	switch t {
	case models.RuleTypeCPLLimit:
		return "cpl", ">"
	case models.RuleTypeMinCTR:
		return "ctr", "<"
	case models.RuleTypeFastSpend:
		return "spend_percent", ">"
	case models.RuleTypeSpendNoLeads:
		return "spent", ">"
	case models.RuleTypeBudgetLimit:
		return "spent", ">"
	case models.RuleTypeLowImpressions:
		return "impressions", "<"
	case models.RuleTypeClicksNoLeads:
		return "clicks", ">="
	default:
		return "", ""
	}
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Create validates and stores a rule. Active rules count against the plan allowance.
func (s *RuleService) Create(ctx context.Context, userID string, in RuleInput) (*models.Rule, error) {
	if err := ValidateRuleInput(&in); err != nil {
		return nil, err
	}
	active := in.IsActive == nil || *in.IsActive
	if active {
		if err := s.checkPlanLimit(ctx, userID); err != nil {
			return nil, err
		}
	}

	rule := &models.Rule{
		ID:              s.newID(),
		UserID:          userID,
		Name:            in.Name,
		Type:            in.Type,
		Conditions:      in.Conditions,
		Actions:         in.Actions,
		TargetAccounts:  in.TargetAccounts,
		TargetCampaigns: in.TargetCampaigns,
		TargetAds:       in.TargetAds,
		IsActive:        active,
	}
	if err := s.rules.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "rule_id": rule.ID, "type": rule.Type}).Info("rule created")
	return rule, nil
}

// List 用户的全部规则
func (s *RuleService) List(ctx context.Context, userID string) ([]models.Rule, error) {
	return s.rules.ListRules(ctx, userID)
}

// Get returns repository.ErrRuleNotFound for rules owned by someone else.
func (s *RuleService) Get(ctx context.Context, userID, id string) (*models.Rule, error) {
	rule, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.UserID != userID {
		return nil, repository.ErrRuleNotFound
	}
	return rule, nil
}

// Update replaces the editable fields; counters are preserved.
func (s *RuleService) Update(ctx context.Context, userID, id string, in RuleInput) (*models.Rule, error) {
	rule, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateRuleInput(&in); err != nil {
		return nil, err
	}
	active := rule.IsActive
	if in.IsActive != nil {
		active = *in.IsActive
	}
	if active && !rule.IsActive {
		if err := s.checkPlanLimit(ctx, userID); err != nil {
			return nil, err
		}
	}

	rule.Name = in.Name
	rule.Type = in.Type
	rule.Conditions = in.Conditions
	rule.Actions = in.Actions
	rule.TargetAccounts = in.TargetAccounts
	rule.TargetCampaigns = in.TargetCampaigns
	rule.TargetAds = in.TargetAds
	rule.IsActive = active
	if err := s.rules.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Toggle flips is_active; activation re-checks the plan allowance.
func (s *RuleService) Toggle(ctx context.Context, userID, id string) (*models.Rule, error) {
	rule, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		if err := s.checkPlanLimit(ctx, userID); err != nil {
			return nil, err
		}
	}
	if err := s.rules.SetRulesActive(ctx, []string{rule.ID}, !rule.IsActive); err != nil {
		return nil, err
	}
	rule.IsActive = !rule.IsActive
	return rule, nil
}

// Delete 删除规则（审计记录保留）
func (s *RuleService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.rules.DeleteRule(ctx, id)
}

// EnforcePlanLimit deactivates the newest active rules beyond the plan allowance,
// e.g. after a downgrade. It returns the ids it deactivated.
func (s *RuleService) EnforcePlanLimit(ctx context.Context, userID, plan string) ([]string, error) {
	limit := s.plans.RuleLimit(plan)
	if limit <= 0 {
		return nil, nil
	}
	active, err := s.rules.ListActiveRules(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(active) <= limit {
		return nil, nil
	}
	ids := make([]string, 0, len(active)-limit)
	for _, r := range active[limit:] {
		ids = append(ids, r.ID)
	}
	if err := s.rules.SetRulesActive(ctx, ids, false); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "plan": plan, "deactivated": len(ids)}).Info("rules deactivated by plan limit")
	return ids, nil
}

func (s *RuleService) checkPlanLimit(ctx context.Context, userID string) error {
	plan := models.PlanFree
	if s.users != nil {
		user, err := s.users.GetUser(ctx, userID)
		switch {
		case err == nil:
			plan = user.Plan
		case errors.Is(err, repository.ErrUserNotFound):
		default:
			return err
		}
	}
	limit := s.plans.RuleLimit(plan)
	if limit <= 0 {
		return nil
	}
	n, err := s.rules.CountActiveRules(ctx, userID)
	if err != nil {
		return err
	}
	if n >= int64(limit) {
		return fmt.Errorf("%w (%s: %d)", ErrRuleLimitReached, plan, limit)
	}
	return nil
}
