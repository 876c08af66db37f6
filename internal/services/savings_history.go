package services

import (
	"context"
	"fmt"
	"time"

	"adpilot/internal/models"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// DailySavings 单日节省金额
type DailySavings struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// SavingsHistory 一段时间的节省汇总
type SavingsHistory struct {
	Days  []DailySavings `json:"days"`
	Total float64        `json:"total"`
}

// AggregateSavingsByDay builds a series of `days` entries ending on now's date (oldest first).
// Reverted and failed logs do not count as savings.
func AggregateSavingsByDay(logs []models.ActionLog, days int, now time.Time) SavingsHistory {
	if days <= 0 {
		return SavingsHistory{Days: []DailySavings{}}
	}
	loc := now.Location()
	first := startOfDay(now).AddDate(0, 0, -(days - 1))

	sums := make([]decimal.Decimal, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		index[first.AddDate(0, 0, i).Format(dateLayout)] = i
	}

	total := decimal.Zero
	for _, l := range logs {
		if l.Status != models.ActionStatusSuccess || l.SavedAmount <= 0 {
			continue
		}
		i, ok := index[l.CreatedAt.In(loc).Format(dateLayout)]
		if !ok {
			continue
		}
		amount := decimal.NewFromFloat(l.SavedAmount)
		sums[i] = sums[i].Add(amount)
		total = total.Add(amount)
	}

	out := SavingsHistory{Days: make([]DailySavings, days), Total: total.Round(2).InexactFloat64()}
	for i := range out.Days {
		out.Days[i] = DailySavings{
			Date:   first.AddDate(0, 0, i).Format(dateLayout),
			Amount: sums[i].Round(2).InexactFloat64(),
		}
	}
	return out
}

// SavingsService 节省统计
type SavingsService struct {
	logs ActionLogStore
	loc  *time.Location
}

// NewSavingsService 创建节省统计服务
func NewSavingsService(logs ActionLogStore, loc *time.Location) *SavingsService {
	if loc == nil {
		loc = time.UTC
	}
	return &SavingsService{logs: logs, loc: loc}
}

// History returns the user's daily savings for the last `days` days including today.
func (s *SavingsService) History(ctx context.Context, userID string, days int, now time.Time) (SavingsHistory, error) {
	if days <= 0 || days > 366 {
		return SavingsHistory{}, fmt.Errorf("%w: days must be between 1 and 366", ErrInvalidInput)
	}
	now = now.In(s.loc)
	since := startOfDay(now).AddDate(0, 0, -(days - 1))
	logs, err := s.logs.ListActionLogsSince(ctx, userID, since)
	if err != nil {
		return SavingsHistory{}, fmt.Errorf("load action logs: %w", err)
	}
	return AggregateSavingsByDay(logs, days, now), nil
}
