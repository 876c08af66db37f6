package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"adpilot/internal/config"
	"adpilot/internal/models"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Priority 通知优先级
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityStandard Priority = "standard"
)

// RuleEvent 规则触发事件（发往聊天机器人）
type RuleEvent struct {
	ActionLogID string                 `json:"action_log_id"`
	RuleID      string                 `json:"rule_id"`
	RuleName    string                 `json:"rule_name"`
	AccountID   string                 `json:"account_id"`
	AdID        string                 `json:"ad_id"`
	AdName      string                 `json:"ad_name"`
	Reason      string                 `json:"reason"`
	ActionType  models.ActionType      `json:"action_type"`
	SavedAmount float64                `json:"saved_amount"`
	Metrics     models.MetricsSnapshot `json:"metrics"`
	// Status 为 failed 时 ErrorMessage 说明停止失败原因
	Status       models.ActionStatus `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

// StopFailed reports whether the event asked to stop the ad and the stop did not go through.
func (e RuleEvent) StopFailed() bool {
	return e.Status == models.ActionStatusFailed
}

// Result reports the delivery outcome. Delivery problems never surface as errors.
type Result struct {
	Sent     bool   `json:"sent"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Sender is the part of a shoutrrr router the notifier uses.
type Sender interface {
	Send(message string, params *types.Params) []error
}

// SenderFactory builds a sender for a shoutrrr service URL.
type SenderFactory func(serviceURL string) (Sender, error)

// ChatResolver 查询用户绑定的 Telegram chat
type ChatResolver interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// TelegramNotifier sends rule events through the Telegram bot via shoutrrr.
type TelegramNotifier struct {
	cfg       config.NotificationConfig
	users     ChatResolver
	newSender SenderFactory
	logger    *logrus.Logger
}

// NewTelegramNotifier 创建 Telegram 通知器
func NewTelegramNotifier(cfg config.NotificationConfig, users ChatResolver, logger *logrus.Logger) *TelegramNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &TelegramNotifier{
		cfg:   cfg,
		users: users,
		newSender: func(serviceURL string) (Sender, error) {
			router, err := shoutrrr.CreateSender(serviceURL)
			if err != nil {
				return nil, err
			}
			return router, nil
		},
		logger: logger,
	}
}

// WithSenderFactory replaces the shoutrrr sender factory.
func (n *TelegramNotifier) WithSenderFactory(f SenderFactory) *TelegramNotifier {
	n.newSender = f
	return n
}

// ValidateConfig checks that the bot token can form a valid service URL.
func (n *TelegramNotifier) ValidateConfig() error {
	if !n.cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(n.cfg.TelegramBotToken) == "" {
		return errors.New("telegram bot token is required when notifications are enabled")
	}
	if _, err := url.Parse(n.serviceURL("0")); err != nil {
		return fmt.Errorf("invalid telegram service url: %w", err)
	}
	return nil
}

// SendRuleNotification 发送规则通知，失败时按配置重试，永不返回错误
func (n *TelegramNotifier) SendRuleNotification(ctx context.Context, userID string, event RuleEvent, priority Priority) Result {
	log := n.logger.WithFields(logrus.Fields{"user_id": userID, "rule_id": event.RuleID, "ad_id": event.AdID})

	if !n.cfg.Enabled || n.cfg.TelegramBotToken == "" {
		return Result{Error: "notifications disabled"}
	}
	if n.users == nil {
		return Result{Error: "no chat resolver"}
	}
	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		log.Warnf("notify: resolve user failed: %v", err)
		return Result{Error: err.Error()}
	}
	if user.TelegramChatID == "" {
		return Result{Error: "telegram not linked"}
	}

	sender, err := n.newSender(n.serviceURL(user.TelegramChatID))
	if err != nil {
		log.Warnf("notify: create sender failed: %v", err)
		return Result{Error: err.Error()}
	}

	message := FormatRuleMessage(event, priority)
	params := types.Params{"title": titleFor(event, priority)}

	attempts := n.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if errs := sender.Send(message, &params); len(errs) > 0 {
			lastErr = errors.Join(errs...)
		} else {
			lastErr = nil
		}
		if lastErr == nil {
			return Result{Sent: true, Attempts: i}
		}
		log.Warnf("notify: attempt %d/%d failed: %v", i, attempts, lastErr)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return Result{Attempts: i, Error: ctx.Err().Error()}
		case <-time.After(n.cfg.RetryDelay * time.Duration(i)):
		}
	}
	return Result{Attempts: attempts, Error: lastErr.Error()}
}

func (n *TelegramNotifier) serviceURL(chatID string) string {
	return fmt.Sprintf("telegram://%s@telegram?chats=%s&preview=no", n.cfg.TelegramBotToken, url.QueryEscape(chatID))
}

func titleFor(e RuleEvent, p Priority) string {
	if e.StopFailed() {
		return "Ad stop failed"
	}
	if p == PriorityCritical {
		return "Ad stopped"
	}
	return "Rule triggered"
}

// FormatRuleMessage renders the chat message for a rule event.
func FormatRuleMessage(e RuleEvent, p Priority) string {
	var b strings.Builder
	if p == PriorityCritical {
		b.WriteString("🚨 ")
	} else {
		b.WriteString("🔔 ")
	}
	fmt.Fprintf(&b, "Rule \"%s\" triggered\n", e.RuleName)
	fmt.Fprintf(&b, "Ad: %s\n", adLabel(e))
	fmt.Fprintf(&b, "Reason: %s\n", e.Reason)

	switch {
	case e.StopFailed():
		msg := e.ErrorMessage
		if msg == "" {
			msg = "unknown error"
		}
		fmt.Fprintf(&b, "Action: stop failed: %s\n", msg)
	case e.ActionType == models.ActionTypeStopped, e.ActionType == models.ActionTypeStoppedAndNotified:
		b.WriteString("Action: ad stopped\n")
	default:
		b.WriteString("Action: notification only\n")
	}
	if e.SavedAmount > 0 && !e.StopFailed() {
		fmt.Fprintf(&b, "Estimated savings today: %s\n", decimal.NewFromFloat(e.SavedAmount).StringFixed(2))
	}
	fmt.Fprintf(&b, "Spent %s, leads %d, clicks %d, impressions %d",
		decimal.NewFromFloat(e.Metrics.Spent).StringFixed(2), e.Metrics.Leads, e.Metrics.Clicks, e.Metrics.Impressions)
	return b.String()
}

func adLabel(e RuleEvent) string {
	if e.AdName == "" {
		return e.AdID
	}
	return e.AdName
}
