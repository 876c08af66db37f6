package models

import (
	"time"

	"gorm.io/gorm"
)

// 套餐
const (
	PlanFree   = "free"
	PlanPro    = "pro"
	PlanAgency = "agency"
)

// 广告账户状态
const (
	AccountStatusActive       = "active"
	AccountStatusPaused       = "paused"
	AccountStatusDisconnected = "disconnected"
)

// 用户模型
type User struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	Email          string         `gorm:"unique;not null" json:"email"`
	Name           string         `json:"name"`
	Plan           string         `gorm:"default:'free'" json:"plan"` // free, pro, agency
	TelegramChatID string         `json:"telegram_chat_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// 广告平台账户
type AdAccount struct {
	ID                string    `gorm:"primaryKey;size:64" json:"id"`
	UserID            string    `gorm:"index;size:36;not null" json:"user_id"`
	PlatformAccountID string    `gorm:"index" json:"platform_account_id"`
	Name              string    `json:"name"`
	Status            string    `gorm:"index;default:'active'" json:"status"` // active, paused, disconnected
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// 广告计划（预算在计划层级）
type Campaign struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	AccountID   string    `gorm:"index;size:64" json:"account_id"`
	Name        string    `json:"name"`
	DailyBudget *float64  `json:"daily_budget"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// 广告
type Ad struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	AccountID  string    `gorm:"index;size:64" json:"account_id"`
	CampaignID string    `gorm:"index;size:64" json:"campaign_id"`
	Name       string    `json:"name"`
	Status     string    `gorm:"default:'active'" json:"status"` // active, stopped
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// 按天汇总的广告数据
type AdDailyMetric struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   string    `gorm:"index:idx_daily_account_date,priority:1;size:64" json:"account_id"`
	CampaignID  string    `gorm:"size:64" json:"campaign_id"`
	AdID        string    `gorm:"index:idx_daily_ad_date,priority:1;size:64" json:"ad_id"`
	AdName      string    `json:"ad_name"`
	Date        time.Time `gorm:"index:idx_daily_account_date,priority:2;index:idx_daily_ad_date,priority:2" json:"date"`
	Spent       float64   `json:"spent"`
	Leads       int64     `json:"leads"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	CPL         *float64  `json:"cpl,omitempty"`
	CTR         *float64  `json:"ctr,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// 实时消耗采样点（当天累计消耗）
type AdRealtimeMetric struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AdID       string    `gorm:"index:idx_realtime_ad_time,priority:1;size:64" json:"ad_id"`
	Spent      float64   `json:"spent"`
	RecordedAt time.Time `gorm:"index:idx_realtime_ad_time,priority:2" json:"recorded_at"`
}

// 广告平台 OAuth 令牌
type PlatformToken struct {
	UserID       string    `gorm:"primaryKey;size:36" json:"user_id"`
	AccessToken  string    `gorm:"type:text" json:"-"`
	RefreshToken string    `gorm:"type:text" json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
