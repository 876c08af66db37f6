package services

import "time"

// budgetCutoffHour 每日投放截止时间（18:00），业务常量
const budgetCutoffHour = 18

// EstimateSavings returns spendPerMinute*minutesRemaining when both are positive, else 0.
func EstimateSavings(spendPerMinute float64, minutesRemaining int) float64 {
	if spendPerMinute <= 0 || minutesRemaining <= 0 {
		return 0
	}
	return spendPerMinute * float64(minutesRemaining)
}

// MinutesRemainingInBudgetPeriod counts whole minutes from now until 18:00 of the
// same day in now's location. It is 0 at or after 18:00.
func MinutesRemainingInBudgetPeriod(now time.Time) int {
	y, m, d := now.Date()
	cutoff := time.Date(y, m, d, budgetCutoffHour, 0, 0, 0, now.Location())
	if !now.Before(cutoff) {
		return 0
	}
	return int(cutoff.Sub(now) / time.Minute)
}

// SpendPerMinute 当日消耗 / 自零点起经过的整分钟数；尚未经过一分钟时为 0
func SpendPerMinute(spent float64, now time.Time) float64 {
	elapsed := int(now.Sub(startOfDay(now)) / time.Minute)
	if elapsed <= 0 {
		return 0
	}
	return spent / float64(elapsed)
}
