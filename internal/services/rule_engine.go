package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"adpilot/internal/config"
	"adpilot/internal/metrics"
	"adpilot/internal/models"
	"adpilot/internal/notify"
	"adpilot/internal/observability"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// stopFailedFallback is stored when the platform error carries no message.
const stopFailedFallback = "failed to stop ad"

// SweepSummary 一次巡检的统计
type SweepSummary struct {
	Accounts     int           `json:"accounts"`
	Users        int           `json:"users"`
	RulesChecked int           `json:"rules_checked"`
	AdsEvaluated int           `json:"ads_evaluated"`
	Triggered    int           `json:"triggered"`
	StopFailures int           `json:"stop_failures"`
	Notified     int           `json:"notified"`
	UserErrors   int           `json:"user_errors"`
	Duration     time.Duration `json:"duration"`
}

// RuleEngine evaluates every active rule against today's ad metrics and acts on triggers.
type RuleEngine struct {
	accounts  AccountStore
	rules     RuleStore
	logs      ActionLogStore
	platform  AdPlatform
	notifier  Notifier
	publisher ActionPublisher
	cfg       config.EngineConfig
	loc       *time.Location
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *logrus.Logger
	newID     func() string
}

// RuleEngineDeps 规则引擎依赖
type RuleEngineDeps struct {
	Accounts  AccountStore
	Rules     RuleStore
	Logs      ActionLogStore
	Platform  AdPlatform
	Notifier  Notifier
	Publisher ActionPublisher
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger
}

// NewRuleEngine 创建规则引擎
func NewRuleEngine(cfg config.EngineConfig, deps RuleEngineDeps) *RuleEngine {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.FastSpendWindow <= 0 {
		cfg.FastSpendWindow = 15 * time.Minute
	}
	if cfg.MinSamplesWindow <= 0 {
		cfg.MinSamplesWindow = 24 * time.Hour
	}
	return &RuleEngine{
		accounts:  deps.Accounts,
		rules:     deps.Rules,
		logs:      deps.Logs,
		platform:  deps.Platform,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		cfg:       cfg,
		loc:       cfg.Location(),
		metrics:   deps.Metrics,
		tracer:    observability.Tracer(),
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// RunSweep 执行一次完整巡检。单个用户的失败只记日志，不影响其他用户；
// 只有账户列表读取失败才返回错误
func (e *RuleEngine) RunSweep(ctx context.Context, now time.Time) (SweepSummary, error) {
	start := time.Now()
	now = now.In(e.loc)
	ctx, span := e.tracer.Start(ctx, "rule_engine.sweep")
	defer span.End()

	var summary SweepSummary
	accounts, err := e.accounts.ListActiveAccounts(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list accounts")
		e.metrics.ObserveSweep(time.Since(start), err)
		return summary, fmt.Errorf("list active accounts: %w", err)
	}
	summary.Accounts = len(accounts)
	if len(accounts) == 0 {
		e.metrics.ObserveSweep(time.Since(start), nil)
		return summary, nil
	}

	seen := make(map[string]struct{}, len(accounts))
	for _, acc := range accounts {
		if _, ok := seen[acc.UserID]; ok {
			continue
		}
		seen[acc.UserID] = struct{}{}
		summary.Users++

		if err := e.processUser(ctx, acc.UserID, now, &summary); err != nil {
			summary.UserErrors++
			e.logger.WithField("user_id", acc.UserID).Errorf("rule engine: user sweep failed: %v", err)
		}
	}

	summary.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("sweep.users", summary.Users),
		attribute.Int("sweep.triggered", summary.Triggered),
		attribute.Int("sweep.user_errors", summary.UserErrors),
	)
	e.metrics.ObserveSweep(summary.Duration, nil)
	e.logger.WithFields(logrus.Fields{
		"accounts":      summary.Accounts,
		"users":         summary.Users,
		"rules":         summary.RulesChecked,
		"ads":           summary.AdsEvaluated,
		"triggered":     summary.Triggered,
		"stop_failures": summary.StopFailures,
		"user_errors":   summary.UserErrors,
		"duration":      summary.Duration.String(),
	}).Info("rule engine: sweep finished")
	return summary, nil
}

func (e *RuleEngine) processUser(ctx context.Context, userID string, now time.Time, summary *SweepSummary) (err error) {
	ctx, span := e.tracer.Start(ctx, "rule_engine.user", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "user sweep failed")
		}
	}()

	rules, err := e.rules.ListActiveRules(ctx, userID)
	if err != nil {
		return fmt.Errorf("list active rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	// 同一用户的多个规则共享当天指标（只读）
	today := startOfDay(now)
	metricsByAccount := make(map[string][]models.AdDailyMetric)

	for i := range rules {
		rule := &rules[i]
		summary.RulesChecked++
		for _, accountID := range rule.TargetAccounts {
			rows, ok := metricsByAccount[accountID]
			if !ok {
				rows, err = e.accounts.ListTodayMetrics(ctx, accountID, today)
				if err != nil {
					return fmt.Errorf("list metrics of account %s: %w", accountID, err)
				}
				metricsByAccount[accountID] = rows
			}
			for _, row := range rows {
				if err := e.evaluateAd(ctx, userID, rule, accountID, row, now, summary); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (e *RuleEngine) evaluateAd(ctx context.Context, userID string, rule *models.Rule, accountID string, row models.AdDailyMetric, now time.Time, summary *SweepSummary) error {
	if !rule.TargetsAd(row.AdID) || !rule.TargetsCampaign(row.CampaignID) {
		return nil
	}
	log := e.logger.WithFields(logrus.Fields{"user_id": userID, "rule_id": rule.ID, "ad_id": row.AdID})

	if rule.Conditions.MinSamples != nil {
		samples, err := e.accounts.ListRealtimeSince(ctx, row.AdID, now.Add(-e.cfg.MinSamplesWindow))
		if err != nil {
			return fmt.Errorf("count samples of ad %s: %w", row.AdID, err)
		}
		if len(samples) < *rule.Conditions.MinSamples {
			return nil
		}
	}

	snapshot, evalCtx, err := e.buildInputs(ctx, rule, row, now)
	if err != nil {
		return err
	}
	summary.AdsEvaluated++
	if !Evaluate(rule.Type, rule.Conditions, snapshot, evalCtx) {
		return nil
	}

	actionType, ok := rule.Actions.ActionType()
	if !ok {
		log.Warn("rule engine: rule triggered but has no actions")
		return nil
	}
	summary.Triggered++

	savedAmount := 0.0
	if rule.Actions.StopAd {
		savedAmount = EstimateSavings(SpendPerMinute(row.Spent, now), MinutesRemainingInBudgetPeriod(now))
	}
	reason := FormatReason(rule.Type, rule.Conditions, snapshot, rule.Conditions.Window())

	entry := &models.ActionLog{
		ID:              e.newID(),
		UserID:          userID,
		RuleID:          rule.ID,
		AccountID:       accountID,
		AdID:            row.AdID,
		AdName:          row.AdName,
		ActionType:      actionType,
		Reason:          reason,
		MetricsSnapshot: snapshot.WithRatios(),
		SavedAmount:     savedAmount,
		Status:          models.ActionStatusSuccess,
		CreatedAt:       now,
	}

	if rule.Actions.StopAd {
		if stopErr := e.stopAd(ctx, userID, accountID, row.AdID); stopErr != nil {
			msg := stopErr.Error()
			if msg == "" {
				msg = stopFailedFallback
			}
			entry.Status = models.ActionStatusFailed
			entry.ErrorMessage = &msg
			summary.StopFailures++
			e.metrics.IncStopFailure()
			log.Warnf("rule engine: stop ad failed: %s", msg)
		}
	}

	if err := e.logs.CreateActionLog(ctx, entry); err != nil {
		return fmt.Errorf("persist action log for rule %s ad %s: %w", rule.ID, row.AdID, err)
	}
	if err := e.rules.IncrementTriggerCount(ctx, rule.ID, now); err != nil {
		return fmt.Errorf("increment trigger count of rule %s: %w", rule.ID, err)
	}
	e.metrics.IncTriggered(string(rule.Type), string(actionType))
	log.WithFields(logrus.Fields{
		"action_type":  actionType,
		"status":       entry.Status,
		"saved_amount": savedAmount,
	}).Info("rule engine: rule triggered")

	if e.publisher != nil {
		e.publisher.PublishAction(userID, entry)
	}

	if rule.Actions.Notify && e.notifier != nil {
		priority := notify.PriorityStandard
		if rule.Actions.StopAd {
			priority = notify.PriorityCritical
		}
		event := notify.RuleEvent{
			ActionLogID: entry.ID,
			RuleID:      rule.ID,
			RuleName:    rule.Name,
			AccountID:   accountID,
			AdID:        row.AdID,
			AdName:      row.AdName,
			Reason:      reason,
			ActionType:  actionType,
			SavedAmount: savedAmount,
			Metrics:     entry.MetricsSnapshot,
			Status:      entry.Status,
		}
		if entry.ErrorMessage != nil {
			event.ErrorMessage = *entry.ErrorMessage
		}
		res := e.notifier.SendRuleNotification(ctx, userID, event, priority)
		e.metrics.IncNotification(res.Sent)
		if res.Sent {
			summary.Notified++
		} else {
			log.Warnf("rule engine: notification not delivered: %s", res.Error)
		}
	}
	return nil
}

// buildInputs 构建评估所需的快照；fast_spend 额外加载实时窗口与日预算
func (e *RuleEngine) buildInputs(ctx context.Context, rule *models.Rule, row models.AdDailyMetric, now time.Time) (models.MetricsSnapshot, *EvalContext, error) {
	snapshot := SnapshotFromDaily(row)

	switch rule.Type {
	case models.RuleTypeClicksNoLeads:
		window := rule.Conditions.Window()
		if window == models.TimeWindowDaily {
			break
		}
		since := windowStart(window, now)
		rows, err := e.accounts.ListDailyMetrics(ctx, row.AdID, since)
		if err != nil {
			return snapshot, nil, fmt.Errorf("aggregate metrics of ad %s: %w", row.AdID, err)
		}
		snapshot = AggregateDaily(rows, since)

	case models.RuleTypeFastSpend:
		since := now.Add(-e.cfg.FastSpendWindow)
		samples, err := e.accounts.ListRealtimeSince(ctx, row.AdID, since)
		if err != nil {
			return snapshot, nil, fmt.Errorf("load spend window of ad %s: %w", row.AdID, err)
		}
		budget, err := e.accounts.GetCampaignDailyBudget(ctx, row.AdID)
		if err != nil {
			return snapshot, nil, fmt.Errorf("load daily budget of ad %s: %w", row.AdID, err)
		}
		return snapshot, &EvalContext{Samples: RealtimeWindow(samples, since), DailyBudget: budget}, nil
	}
	return snapshot, nil, nil
}

func (e *RuleEngine) stopAd(ctx context.Context, userID, accountID, adID string) error {
	if e.platform == nil {
		return fmt.Errorf("ad platform is not configured")
	}
	token, err := e.platform.GetValidAccessToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}
	return e.platform.StopAd(ctx, token, adID, accountID)
}
