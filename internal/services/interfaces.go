package services

import (
	"context"
	"time"

	"adpilot/internal/models"
	"adpilot/internal/notify"
	"adpilot/internal/repository"
)

// AccountStore 广告账户与指标的只读访问
type AccountStore interface {
	ListActiveAccounts(ctx context.Context) ([]models.AdAccount, error)
	ListTodayMetrics(ctx context.Context, accountID string, date time.Time) ([]models.AdDailyMetric, error)
	ListRealtimeSince(ctx context.Context, adID string, since time.Time) ([]models.SpendSample, error)
	// ListDailyMetrics returns the daily buckets of one ad, all of them when since is nil.
	ListDailyMetrics(ctx context.Context, adID string, since *time.Time) ([]models.AdDailyMetric, error)
	GetCampaignDailyBudget(ctx context.Context, adID string) (*float64, error)
}

// AccountManager covers the account mutations used outside the sweep.
type AccountManager interface {
	GetAccount(ctx context.Context, id string) (*models.AdAccount, error)
	UpdateAccountStatus(ctx context.Context, id, status string) error
}

// RuleStore is what the sweep needs from rule storage.
type RuleStore interface {
	ListActiveRules(ctx context.Context, userID string) ([]models.Rule, error)
	// IncrementTriggerCount must be a single atomic update.
	IncrementTriggerCount(ctx context.Context, ruleID string, at time.Time) error
}

// RuleRepository 规则的增删改查
type RuleRepository interface {
	RuleStore
	CreateRule(ctx context.Context, rule *models.Rule) error
	GetRule(ctx context.Context, id string) (*models.Rule, error)
	ListRules(ctx context.Context, userID string) ([]models.Rule, error)
	UpdateRule(ctx context.Context, rule *models.Rule) error
	DeleteRule(ctx context.Context, id string) error
	CountActiveRules(ctx context.Context, userID string) (int64, error)
	SetRulesActive(ctx context.Context, ids []string, active bool) error
}

// ActionLogStore 审计记录存储
type ActionLogStore interface {
	CreateActionLog(ctx context.Context, log *models.ActionLog) error
	// GetActionLog returns repository.ErrActionLogNotFound for unknown ids.
	GetActionLog(ctx context.Context, id string) (*models.ActionLog, error)
	// MarkReverted flips status to reverted unless it already is; false means nothing changed.
	MarkReverted(ctx context.Context, id, revertedBy string, at time.Time) (bool, error)
	ListActionLogs(ctx context.Context, filter repository.ActionLogFilter) ([]models.ActionLog, int64, error)
	ListActionLogsSince(ctx context.Context, userID string, since time.Time) ([]models.ActionLog, error)
	DeleteActionLogsByAccount(ctx context.Context, accountID string) (int64, error)
}

// UserStore 用户查询（套餐等）
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// PlanStore reads and changes a user's plan.
type PlanStore interface {
	UserStore
	UpdateUserPlan(ctx context.Context, id, plan string) error
}

// AdPlatform is the ad-platform client as seen by the engine.
type AdPlatform interface {
	// GetValidAccessToken refreshes the token when needed.
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
	StopAd(ctx context.Context, token, adID, accountID string) error
	ResumeAd(ctx context.Context, token, adID, accountID string) error
}

// Notifier delivers rule events to the user. It never returns an error.
type Notifier interface {
	SendRuleNotification(ctx context.Context, userID string, event notify.RuleEvent, priority notify.Priority) notify.Result
}

// ActionPublisher receives every persisted action log, e.g. the live feed.
type ActionPublisher interface {
	PublishAction(userID string, log *models.ActionLog)
}
