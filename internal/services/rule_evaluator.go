package services

import "adpilot/internal/models"

// EvalContext carries the time-series inputs only fast_spend needs.
type EvalContext struct {
	Samples     []models.SpendSample
	DailyBudget *float64
}

// Evaluate 判断规则条件是否满足；未知类型或无法计算时一律返回 false
func Evaluate(ruleType models.RuleType, cond models.RuleConditions, m models.MetricsSnapshot, ec *EvalContext) bool {
	switch ruleType {
	case models.RuleTypeCPLLimit:
		cpl, ok := m.CostPerLead()
		return ok && cpl > cond.Threshold
	case models.RuleTypeMinCTR:
		ctr, ok := m.ClickThroughRate()
		return ok && ctr < cond.Threshold
	case models.RuleTypeFastSpend:
		pct, ok := percentSpent(ec)
		return ok && pct > cond.Threshold
	case models.RuleTypeSpendNoLeads:
		return m.Spent > cond.Threshold && m.Leads == 0
	case models.RuleTypeBudgetLimit:
		return m.Spent > cond.Threshold
	case models.RuleTypeLowImpressions:
		return float64(m.Impressions) < cond.Threshold
	case models.RuleTypeClicksNoLeads:
		return float64(m.Clicks) >= cond.Threshold && m.Leads == 0
	default:
		return false
	}
}

// percentSpent returns the share of the daily budget spent between the oldest
// and newest sample of the window.
func percentSpent(ec *EvalContext) (float64, bool) {
	if ec == nil || len(ec.Samples) < 2 {
		return 0, false
	}
	if ec.DailyBudget == nil || *ec.DailyBudget <= 0 {
		return 0, false
	}
	oldest, newest := ec.Samples[0], ec.Samples[0]
	for _, s := range ec.Samples[1:] {
		if s.Timestamp.Before(oldest.Timestamp) {
			oldest = s
		}
		if s.Timestamp.After(newest.Timestamp) {
			newest = s
		}
	}
	return 100 * (newest.Spent - oldest.Spent) / *ec.DailyBudget, true
}
