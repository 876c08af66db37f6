package services

import (
	"sort"
	"time"

	"adpilot/internal/models"
)

// SnapshotFromDaily 将单日数据转换为评估用快照（不计算比率）
func SnapshotFromDaily(row models.AdDailyMetric) models.MetricsSnapshot {
	return models.MetricsSnapshot{
		Spent:       row.Spent,
		Leads:       row.Leads,
		Impressions: row.Impressions,
		Clicks:      row.Clicks,
		CPL:         row.CPL,
		CTR:         row.CTR,
	}
}

// AggregateDaily sums the daily buckets dated on or after since (all buckets when since is nil).
// Ratio fields are left empty.
func AggregateDaily(rows []models.AdDailyMetric, since *time.Time) models.MetricsSnapshot {
	var out models.MetricsSnapshot
	for _, row := range rows {
		if since != nil && row.Date.Before(*since) {
			continue
		}
		out.Spent += row.Spent
		out.Leads += row.Leads
		out.Impressions += row.Impressions
		out.Clicks += row.Clicks
	}
	return out
}

// RealtimeWindow keeps samples at or after since, sorted by timestamp ascending.
// The input slice is not modified.
func RealtimeWindow(samples []models.SpendSample, since time.Time) []models.SpendSample {
	out := make([]models.SpendSample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.Before(since) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// windowStart 返回 clicks_no_leads 聚合窗口的起点；since_launch 返回 nil
func windowStart(window models.TimeWindow, now time.Time) *time.Time {
	switch window {
	case models.TimeWindow24h:
		// 按天存储的数据只能精确到日期
		start := startOfDay(now.Add(-24 * time.Hour))
		return &start
	case models.TimeWindowSinceLaunch:
		return nil
	default:
		start := startOfDay(now)
		return &start
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
