package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"adpilot/internal/models"
	"adpilot/internal/notify"
	"adpilot/internal/repository"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// fakeAccounts 内存版账户与指标存储
type fakeAccounts struct {
	mu       sync.Mutex
	accounts []models.AdAccount
	today    map[string][]models.AdDailyMetric // accountID -> rows
	daily    map[string][]models.AdDailyMetric // adID -> rows
	realtime map[string][]models.SpendSample   // adID -> samples
	budgets  map[string]*float64               // adID -> budget
	failFor  map[string]error                  // accountID -> ListTodayMetrics error
	panicFor map[string]bool                   // accountID -> panic in ListTodayMetrics
	listErr  error
	calls    map[string]int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		today:    map[string][]models.AdDailyMetric{},
		daily:    map[string][]models.AdDailyMetric{},
		realtime: map[string][]models.SpendSample{},
		budgets:  map[string]*float64{},
		failFor:  map[string]error{},
		panicFor: map[string]bool{},
		calls:    map[string]int{},
	}
}

func (f *fakeAccounts) ListActiveAccounts(ctx context.Context) ([]models.AdAccount, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.accounts, nil
}

func (f *fakeAccounts) ListTodayMetrics(ctx context.Context, accountID string, date time.Time) ([]models.AdDailyMetric, error) {
	f.mu.Lock()
	f.calls["today:"+accountID]++
	f.mu.Unlock()
	if f.panicFor[accountID] {
		panic("boom")
	}
	if err := f.failFor[accountID]; err != nil {
		return nil, err
	}
	return f.today[accountID], nil
}

func (f *fakeAccounts) ListRealtimeSince(ctx context.Context, adID string, since time.Time) ([]models.SpendSample, error) {
	var out []models.SpendSample
	for _, s := range f.realtime[adID] {
		if !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeAccounts) ListDailyMetrics(ctx context.Context, adID string, since *time.Time) ([]models.AdDailyMetric, error) {
	var out []models.AdDailyMetric
	for _, r := range f.daily[adID] {
		if since == nil || !r.Date.Before(*since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAccounts) GetCampaignDailyBudget(ctx context.Context, adID string) (*float64, error) {
	return f.budgets[adID], nil
}

func (f *fakeAccounts) GetAccount(ctx context.Context, id string) (*models.AdAccount, error) {
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			acc := f.accounts[i]
			return &acc, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (f *fakeAccounts) UpdateAccountStatus(ctx context.Context, id, status string) error {
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			f.accounts[i].Status = status
			return nil
		}
	}
	return repository.ErrAccountNotFound
}

// fakeRules 内存版规则存储
type fakeRules struct {
	mu    sync.Mutex
	rules map[string]*models.Rule
	order []string
	err   error
}

func newFakeRules(rules ...models.Rule) *fakeRules {
	f := &fakeRules{rules: map[string]*models.Rule{}}
	for i := range rules {
		r := rules[i]
		f.rules[r.ID] = &r
		f.order = append(f.order, r.ID)
	}
	return f
}

func (f *fakeRules) ListActiveRules(ctx context.Context, userID string) ([]models.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Rule
	for _, id := range f.order {
		r := f.rules[id]
		if r.UserID == userID && r.IsActive {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRules) IncrementTriggerCount(ctx context.Context, ruleID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok {
		return repository.ErrRuleNotFound
	}
	r.TriggerCount++
	t := at
	r.LastTriggeredAt = &t
	return nil
}

func (f *fakeRules) CreateRule(ctx context.Context, rule *models.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := *rule
	f.rules[r.ID] = &r
	f.order = append(f.order, r.ID)
	return nil
}

func (f *fakeRules) GetRule(ctx context.Context, id string) (*models.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok {
		return nil, repository.ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRules) ListRules(ctx context.Context, userID string) ([]models.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Rule
	for _, id := range f.order {
		if r := f.rules[id]; r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRules) UpdateRule(ctx context.Context, rule *models.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[rule.ID]; !ok {
		return repository.ErrRuleNotFound
	}
	r := *rule
	f.rules[r.ID] = &r
	return nil
}

func (f *fakeRules) DeleteRule(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return repository.ErrRuleNotFound
	}
	delete(f.rules, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeRules) CountActiveRules(ctx context.Context, userID string) (int64, error) {
	active, err := f.ListActiveRules(ctx, userID)
	return int64(len(active)), err
}

func (f *fakeRules) SetRulesActive(ctx context.Context, ids []string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if r, ok := f.rules[id]; ok {
			r.IsActive = active
		}
	}
	return nil
}

func (f *fakeRules) get(id string) models.Rule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rules[id]
}

// fakeLogs 内存版审计记录存储
type fakeLogs struct {
	mu        sync.Mutex
	logs      []models.ActionLog
	createErr error
	getErr    error
	// markLost 模拟并发撤销抢先完成
	markLost bool
}

func (f *fakeLogs) CreateActionLog(ctx context.Context, log *models.ActionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeLogs) GetActionLog(ctx context.Context, id string) (*models.ActionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.logs {
		if f.logs[i].ID == id {
			cp := f.logs[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrActionLogNotFound
}

func (f *fakeLogs) MarkReverted(ctx context.Context, id, revertedBy string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markLost {
		return false, nil
	}
	for i := range f.logs {
		l := &f.logs[i]
		if l.ID != id || l.Status == models.ActionStatusReverted {
			continue
		}
		l.Status = models.ActionStatusReverted
		t, by := at, revertedBy
		l.RevertedAt, l.RevertedBy = &t, &by
		return true, nil
	}
	return false, nil
}

func (f *fakeLogs) ListActionLogs(ctx context.Context, filter repository.ActionLogFilter) ([]models.ActionLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ActionLog
	for _, l := range f.logs {
		if l.UserID == filter.UserID {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeLogs) ListActionLogsSince(ctx context.Context, userID string, since time.Time) ([]models.ActionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ActionLog
	for _, l := range f.logs {
		if l.UserID == userID && !l.CreatedAt.Before(since) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeLogs) DeleteActionLogsByAccount(ctx context.Context, accountID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.logs[:0]
	var n int64
	for _, l := range f.logs {
		if l.AccountID == accountID {
			n++
			continue
		}
		kept = append(kept, l)
	}
	f.logs = kept
	return n, nil
}

func (f *fakeLogs) all() []models.ActionLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ActionLog(nil), f.logs...)
}

// fakePlatform 记录停止/恢复调用
type fakePlatform struct {
	mu        sync.Mutex
	stopErr   error
	tokenErr  error
	resumeErr error
	stopped   []string
	resumed   []string
}

func (f *fakePlatform) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "token-" + userID, nil
}

func (f *fakePlatform) StopAd(ctx context.Context, token, adID, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, adID)
	return nil
}

func (f *fakePlatform) ResumeAd(ctx context.Context, token, adID, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resumeErr != nil {
		return f.resumeErr
	}
	f.resumed = append(f.resumed, adID)
	return nil
}

// fakeNotifier 记录发送的事件
type fakeNotifier struct {
	mu         sync.Mutex
	sent       bool
	events     []notify.RuleEvent
	priorities []notify.Priority
}

func (f *fakeNotifier) SendRuleNotification(ctx context.Context, userID string, event notify.RuleEvent, priority notify.Priority) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.priorities = append(f.priorities, priority)
	if !f.sent {
		return notify.Result{Sent: false, Attempts: 1, Error: "user has no telegram chat"}
	}
	return notify.Result{Sent: true, Attempts: 1}
}

type fakePublisher struct {
	mu   sync.Mutex
	logs []*models.ActionLog
}

func (f *fakePublisher) PublishAction(userID string, log *models.ActionLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f fakeUsers) UpdateUserPlan(ctx context.Context, id, plan string) error {
	u, ok := f[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Plan = plan
	return nil
}

var errStore = errors.New("database is locked")
