package models

import "time"

// RuleType 规则类型（封闭集合）
type RuleType string

const (
	RuleTypeCPLLimit       RuleType = "cpl_limit"
	RuleTypeMinCTR         RuleType = "min_ctr"
	RuleTypeFastSpend      RuleType = "fast_spend"
	RuleTypeSpendNoLeads   RuleType = "spend_no_leads"
	RuleTypeBudgetLimit    RuleType = "budget_limit"
	RuleTypeLowImpressions RuleType = "low_impressions"
	RuleTypeClicksNoLeads  RuleType = "clicks_no_leads"
)

// KnownRuleTypes lists every rule type the engine understands.
var KnownRuleTypes = []RuleType{
	RuleTypeCPLLimit,
	RuleTypeMinCTR,
	RuleTypeFastSpend,
	RuleTypeSpendNoLeads,
	RuleTypeBudgetLimit,
	RuleTypeLowImpressions,
	RuleTypeClicksNoLeads,
}

// IsKnown reports whether t belongs to the supported catalogue.
func (t RuleType) IsKnown() bool {
	for _, k := range KnownRuleTypes {
		if k == t {
			return true
		}
	}
	return false
}

// TimeWindow 统计窗口，仅 clicks_no_leads 使用
type TimeWindow string

const (
	TimeWindowDaily       TimeWindow = "daily"
	TimeWindow24h         TimeWindow = "24h"
	TimeWindowSinceLaunch TimeWindow = "since_launch"
)

// ActionType 执行动作类型
type ActionType string

const (
	ActionTypeStopped            ActionType = "stopped"
	ActionTypeNotified           ActionType = "notified"
	ActionTypeStoppedAndNotified ActionType = "stopped_and_notified"
)

// ActionStatus 执行结果
type ActionStatus string

const (
	ActionStatusSuccess  ActionStatus = "success"
	ActionStatusFailed   ActionStatus = "failed"
	ActionStatusReverted ActionStatus = "reverted"
)

// RuleConditions 规则条件
type RuleConditions struct {
	Metric     string     `json:"metric"`
	Operator   string     `json:"operator"`
	Threshold  float64    `json:"threshold"`
	MinSamples *int       `json:"min_samples,omitempty"`
	TimeWindow TimeWindow `json:"time_window,omitempty"`
}

// Window returns the configured window, defaulting to daily.
func (c RuleConditions) Window() TimeWindow {
	if c.TimeWindow == "" {
		return TimeWindowDaily
	}
	return c.TimeWindow
}

// RuleActions 规则动作
type RuleActions struct {
	StopAd bool `json:"stop_ad"`
	Notify bool `json:"notify"`
}

// ActionType derives the audit action type from the flags.
// The second value is false when neither flag is set.
func (a RuleActions) ActionType() (ActionType, bool) {
	switch {
	case a.StopAd && a.Notify:
		return ActionTypeStoppedAndNotified, true
	case a.StopAd:
		return ActionTypeStopped, true
	case a.Notify:
		return ActionTypeNotified, true
	default:
		return "", false
	}
}

// Rule 自动化规则
type Rule struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	UserID          string         `gorm:"index:idx_rules_user_active,priority:1;size:36;not null" json:"user_id"`
	Name            string         `gorm:"not null" json:"name"`
	Type            RuleType       `gorm:"size:32;not null" json:"type"`
	Conditions      RuleConditions `gorm:"serializer:json;type:text" json:"conditions"`
	Actions         RuleActions    `gorm:"serializer:json;type:text" json:"actions"`
	TargetAccounts  []string       `gorm:"serializer:json;type:text" json:"target_accounts"`
	TargetCampaigns []string       `gorm:"serializer:json;type:text" json:"target_campaigns,omitempty"`
	TargetAds       []string       `gorm:"serializer:json;type:text" json:"target_ads,omitempty"`
	IsActive        bool           `gorm:"index:idx_rules_user_active,priority:2" json:"is_active"`
	TriggerCount    int64          `gorm:"default:0" json:"trigger_count"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TargetsAd reports whether the ad allowlist admits adID. An empty list admits all ads.
func (r *Rule) TargetsAd(adID string) bool {
	if len(r.TargetAds) == 0 {
		return true
	}
	for _, id := range r.TargetAds {
		if id == adID {
			return true
		}
	}
	return false
}

// TargetsCampaign reports whether the campaign allowlist admits campaignID.
func (r *Rule) TargetsCampaign(campaignID string) bool {
	if len(r.TargetCampaigns) == 0 {
		return true
	}
	for _, id := range r.TargetCampaigns {
		if id == campaignID {
			return true
		}
	}
	return false
}

// MetricsSnapshot 触发时的指标快照
type MetricsSnapshot struct {
	Spent       float64  `json:"spent"`
	Leads       int64    `json:"leads"`
	Impressions int64    `json:"impressions"`
	Clicks      int64    `json:"clicks"`
	CPL         *float64 `json:"cpl,omitempty"`
	CTR         *float64 `json:"ctr,omitempty"`
	CPC         *float64 `json:"cpc,omitempty"`
}

// CostPerLead returns spent/leads; ok is false when there are no leads.
func (m MetricsSnapshot) CostPerLead() (float64, bool) {
	if m.Leads <= 0 {
		return 0, false
	}
	return m.Spent / float64(m.Leads), true
}

// ClickThroughRate returns 100*clicks/impressions; ok is false without impressions.
func (m MetricsSnapshot) ClickThroughRate() (float64, bool) {
	if m.Impressions <= 0 {
		return 0, false
	}
	return 100 * float64(m.Clicks) / float64(m.Impressions), true
}

// CostPerClick returns spent/clicks; ok is false without clicks.
func (m MetricsSnapshot) CostPerClick() (float64, bool) {
	if m.Clicks <= 0 {
		return 0, false
	}
	return m.Spent / float64(m.Clicks), true
}

// WithRatios returns a copy with cpl/ctr/cpc filled where defined and nil elsewhere.
func (m MetricsSnapshot) WithRatios() MetricsSnapshot {
	out := m
	out.CPL, out.CTR, out.CPC = nil, nil, nil
	if v, ok := m.CostPerLead(); ok {
		out.CPL = &v
	}
	if v, ok := m.ClickThroughRate(); ok {
		out.CTR = &v
	}
	if v, ok := m.CostPerClick(); ok {
		out.CPC = &v
	}
	return out
}

// SpendSample 实时消耗采样
type SpendSample struct {
	Spent     float64   `json:"spent"`
	Timestamp time.Time `json:"timestamp"`
}

// ActionLog 规则执行审计记录
type ActionLog struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	UserID          string          `gorm:"index:idx_action_logs_user_created,priority:1;size:36;not null" json:"user_id"`
	RuleID          string          `gorm:"index;size:36" json:"rule_id"`
	AccountID       string          `gorm:"index;size:64" json:"account_id"`
	AdID            string          `gorm:"size:64" json:"ad_id"`
	AdName          string          `json:"ad_name"`
	ActionType      ActionType      `gorm:"size:32;not null" json:"action_type"`
	Reason          string          `gorm:"type:text" json:"reason"`
	MetricsSnapshot MetricsSnapshot `gorm:"serializer:json;type:text" json:"metrics_snapshot"`
	SavedAmount     float64         `gorm:"default:0" json:"saved_amount"`
	Status          ActionStatus    `gorm:"size:16;index;not null" json:"status"` // success, failed, reverted
	ErrorMessage    *string         `gorm:"type:text" json:"error_message,omitempty"`
	RevertedAt      *time.Time      `json:"reverted_at,omitempty"`
	RevertedBy      *string         `gorm:"size:64" json:"reverted_by,omitempty"`
	CreatedAt       time.Time       `gorm:"index:idx_action_logs_user_created,priority:2" json:"created_at"`
}
