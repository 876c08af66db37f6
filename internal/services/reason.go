package services

import (
	"fmt"

	"adpilot/internal/models"

	"github.com/shopspring/decimal"
)

// FormatReason 生成面向用户的一行触发原因
func FormatReason(ruleType models.RuleType, cond models.RuleConditions, m models.MetricsSnapshot, window models.TimeWindow) string {
	switch ruleType {
	case models.RuleTypeCPLLimit:
		cpl, ok := m.CostPerLead()
		if !ok {
			return fmt.Sprintf("No leads yet, cost per lead limit is %s", money(cond.Threshold))
		}
		return fmt.Sprintf("Cost per lead %s exceeds the limit of %s", money(cpl), money(cond.Threshold))
	case models.RuleTypeMinCTR:
		ctr, ok := m.ClickThroughRate()
		if !ok {
			return fmt.Sprintf("No impressions yet, minimum CTR is %s%%", money(cond.Threshold))
		}
		return fmt.Sprintf("CTR %s%% is below the minimum of %s%%", money(ctr), money(cond.Threshold))
	case models.RuleTypeFastSpend:
		return fmt.Sprintf("Spending too fast: more than %s%% of the daily budget in a few minutes (spent %s today)",
			money(cond.Threshold), money(m.Spent))
	case models.RuleTypeSpendNoLeads:
		return fmt.Sprintf("Spent %s with no leads (limit %s)", money(m.Spent), money(cond.Threshold))
	case models.RuleTypeBudgetLimit:
		return fmt.Sprintf("Spent %s, above the budget limit of %s", money(m.Spent), money(cond.Threshold))
	case models.RuleTypeLowImpressions:
		return fmt.Sprintf("Only %d impressions, below the minimum of %s", m.Impressions, count(cond.Threshold))
	case models.RuleTypeClicksNoLeads:
		return fmt.Sprintf("%d clicks and no leads %s (threshold %s)", m.Clicks, windowLabel(window), count(cond.Threshold))
	default:
		return fmt.Sprintf("%s triggered", ruleType)
	}
}

func windowLabel(w models.TimeWindow) string {
	switch w {
	case models.TimeWindow24h:
		return "in the last 24 hours"
	case models.TimeWindowSinceLaunch:
		return "since launch"
	default:
		return "today"
	}
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func count(v float64) string {
	return decimal.NewFromFloat(v).String()
}
