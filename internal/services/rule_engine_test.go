package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"adpilot/internal/config"
	"adpilot/internal/metrics"
	"adpilot/internal/models"
	"adpilot/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sweepNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type engineFixture struct {
	accounts  *fakeAccounts
	rules     *fakeRules
	logs      *fakeLogs
	platform  *fakePlatform
	notifier  *fakeNotifier
	publisher *fakePublisher
	engine    *RuleEngine
}

func newEngineFixture(t *testing.T, rules ...models.Rule) *engineFixture {
	t.Helper()
	f := &engineFixture{
		accounts:  newFakeAccounts(),
		rules:     newFakeRules(rules...),
		logs:      &fakeLogs{},
		platform:  &fakePlatform{},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	f.engine = NewRuleEngine(config.EngineConfig{Timezone: "UTC"}, RuleEngineDeps{
		Accounts:  f.accounts,
		Rules:     f.rules,
		Logs:      f.logs,
		Platform:  f.platform,
		Notifier:  f.notifier,
		Publisher: f.publisher,
		Metrics:   metrics.New(),
		Logger:    quietLogger(),
	})
	seq := 0
	f.engine.newID = func() string {
		seq++
		return fmt.Sprintf("log-%d", seq)
	}
	return f
}

func cplRule(id, userID string, accounts ...string) models.Rule {
	return models.Rule{
		ID:             id,
		UserID:         userID,
		Name:           "CPL guard",
		Type:           models.RuleTypeCPLLimit,
		Conditions:     models.RuleConditions{Metric: "cpl", Operator: ">", Threshold: 500},
		Actions:        models.RuleActions{StopAd: true, Notify: true},
		TargetAccounts: accounts,
		IsActive:       true,
	}
}

func expensiveAd(accountID, adID string) models.AdDailyMetric {
	return models.AdDailyMetric{
		AccountID:   accountID,
		CampaignID:  "camp-1",
		AdID:        adID,
		AdName:      "Spring promo " + adID,
		Date:        startOfDay(sweepNow),
		Spent:       1200,
		Leads:       2,
		Impressions: 10000,
		Clicks:      150,
	}
}

func TestRunSweep_StopAndNotify(t *testing.T) {
	f := newEngineFixture(t, cplRule("rule-1", "user-1", "acc-1"))
	f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1", Status: models.AccountStatusActive}}
	f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1")}

	summary, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Users)
	assert.Equal(t, 1, summary.Triggered)
	assert.Equal(t, 0, summary.Notified)

	logs := f.logs.all()
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, models.ActionTypeStoppedAndNotified, entry.ActionType)
	assert.Equal(t, models.ActionStatusSuccess, entry.Status)
	assert.Equal(t, "rule-1", entry.RuleID)
	assert.Equal(t, "ad-1", entry.AdID)
	assert.Contains(t, entry.Reason, "600")
	assert.Contains(t, entry.Reason, "500")
	assert.Nil(t, entry.ErrorMessage)
	// 1200 spent over 720 minutes, 360 minutes left until 18:00
	assert.InDelta(t, 600, entry.SavedAmount, 1e-6)
	if assert.NotNil(t, entry.MetricsSnapshot.CPL) {
		assert.InDelta(t, 600, *entry.MetricsSnapshot.CPL, 1e-9)
	}
	assert.Equal(t, sweepNow, entry.CreatedAt)

	rule := f.rules.get("rule-1")
	assert.Equal(t, int64(1), rule.TriggerCount)
	if assert.NotNil(t, rule.LastTriggeredAt) {
		assert.Equal(t, sweepNow, *rule.LastTriggeredAt)
	}

	assert.Equal(t, []string{"ad-1"}, f.platform.stopped)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, notify.PriorityCritical, f.notifier.priorities[0])
	assert.Equal(t, entry.ID, f.notifier.events[0].ActionLogID)
	assert.Len(t, f.publisher.logs, 1)
}

func TestRunSweep_NotifyOnlyUsesStandardPriority(t *testing.T) {
	rule := cplRule("rule-1", "user-1", "acc-1")
	rule.Actions = models.RuleActions{Notify: true}
	f := newEngineFixture(t, rule)
	f.notifier.sent = true
	f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
	f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1")}

	summary, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Notified)

	logs := f.logs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionTypeNotified, logs[0].ActionType)
	assert.Zero(t, logs[0].SavedAmount)
	assert.Empty(t, f.platform.stopped)
	assert.Equal(t, []notify.Priority{notify.PriorityStandard}, f.notifier.priorities)
}

func TestRunSweep_StopFailureIsRecorded(t *testing.T) {
	tests := []struct {
		name    string
		stopErr error
		want    string
	}{
		{"platform message", errors.New("ad platform: 400 ad is archived"), "ad platform: 400 ad is archived"},
		{"empty message", errors.New(""), stopFailedFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, cplRule("rule-1", "user-1", "acc-1"))
			f.platform.stopErr = tt.stopErr
			f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
			f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1")}

			summary, err := f.engine.RunSweep(context.Background(), sweepNow)
			require.NoError(t, err)
			assert.Equal(t, 1, summary.StopFailures)

			logs := f.logs.all()
			require.Len(t, logs, 1)
			assert.Equal(t, models.ActionStatusFailed, logs[0].Status)
			require.NotNil(t, logs[0].ErrorMessage)
			assert.Equal(t, tt.want, *logs[0].ErrorMessage)
			assert.Equal(t, int64(1), f.rules.get("rule-1").TriggerCount)

			require.Len(t, f.notifier.events, 1)
			assert.Equal(t, models.ActionStatusFailed, f.notifier.events[0].Status)
			assert.Equal(t, tt.want, f.notifier.events[0].ErrorMessage)
		})
	}
}

func TestRunSweep_TokenErrorFailsStop(t *testing.T) {
	f := newEngineFixture(t, cplRule("rule-1", "user-1", "acc-1"))
	f.platform.tokenErr = errors.New("refresh token revoked")
	f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
	f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1")}

	_, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	logs := f.logs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionStatusFailed, logs[0].Status)
	assert.Contains(t, *logs[0].ErrorMessage, "refresh token revoked")
}

func TestRunSweep_UserProcessedOnce(t *testing.T) {
	f := newEngineFixture(t, cplRule("rule-1", "user-1", "acc-1", "acc-2"))
	f.accounts.accounts = []models.AdAccount{
		{ID: "acc-1", UserID: "user-1"},
		{ID: "acc-2", UserID: "user-1"},
	}
	f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1")}
	f.accounts.today["acc-2"] = []models.AdDailyMetric{expensiveAd("acc-2", "ad-2")}

	summary, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Accounts)
	assert.Equal(t, 1, summary.Users)
	assert.Equal(t, 2, summary.Triggered)
	assert.Len(t, f.logs.all(), 2)
	assert.Equal(t, 1, f.accounts.calls["today:acc-1"])
	assert.Equal(t, 1, f.accounts.calls["today:acc-2"])
	assert.Equal(t, int64(2), f.rules.get("rule-1").TriggerCount)
}

func TestRunSweep_MetricsLoadedOncePerAccount(t *testing.T) {
	second := cplRule("rule-2", "user-1", "acc-1")
	second.Type = models.RuleTypeBudgetLimit
	second.Conditions.Threshold = 5000
	f := newEngineFixture(t, cplRule("rule-1", "user-1", "acc-1"), second)
	f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
	f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1")}

	summary, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.RulesChecked)
	assert.Equal(t, 1, summary.Triggered)
	assert.Equal(t, 1, f.accounts.calls["today:acc-1"])
}

func TestRunSweep_UserFailuresAreIsolated(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeAccounts)
	}{
		{"store error", func(a *fakeAccounts) { a.failFor["acc-bad"] = errStore }},
		{"panic", func(a *fakeAccounts) { a.panicFor["acc-bad"] = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t,
				cplRule("rule-bad", "user-bad", "acc-bad"),
				cplRule("rule-ok", "user-ok", "acc-ok"),
			)
			f.accounts.accounts = []models.AdAccount{
				{ID: "acc-bad", UserID: "user-bad"},
				{ID: "acc-ok", UserID: "user-ok"},
			}
			f.accounts.today["acc-ok"] = []models.AdDailyMetric{expensiveAd("acc-ok", "ad-ok")}
			tt.setup(f.accounts)

			summary, err := f.engine.RunSweep(context.Background(), sweepNow)
			require.NoError(t, err)
			assert.Equal(t, 2, summary.Users)
			assert.Equal(t, 1, summary.UserErrors)
			logs := f.logs.all()
			require.Len(t, logs, 1)
			assert.Equal(t, "user-ok", logs[0].UserID)
		})
	}
}

func TestRunSweep_ListAccountsError(t *testing.T) {
	f := newEngineFixture(t)
	f.accounts.listErr = errStore

	_, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStore)
}

func TestRunSweep_NoAccounts(t *testing.T) {
	f := newEngineFixture(t, cplRule("rule-1", "user-1", "acc-1"))

	summary, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Zero(t, summary.Users)
	assert.Empty(t, f.logs.all())
}

func TestRunSweep_MinSamplesSkipsUntilEnoughData(t *testing.T) {
	rule := cplRule("rule-1", "user-1", "acc-1")
	rule.Conditions.MinSamples = intPtr(3)
	f := newEngineFixture(t, rule)
	f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
	f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1")}
	f.accounts.realtime["ad-1"] = []models.SpendSample{
		{Spent: 1000, Timestamp: sweepNow.Add(-20 * time.Minute)},
		{Spent: 1200, Timestamp: sweepNow.Add(-10 * time.Minute)},
	}

	summary, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Zero(t, summary.AdsEvaluated)
	assert.Empty(t, f.logs.all())

	f.accounts.realtime["ad-1"] = append(f.accounts.realtime["ad-1"],
		models.SpendSample{Spent: 1200, Timestamp: sweepNow.Add(-5 * time.Minute)})
	summary, err = f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Triggered)
}

func TestRunSweep_AdAllowlist(t *testing.T) {
	rule := cplRule("rule-1", "user-1", "acc-1")
	rule.TargetAds = []string{"ad-2"}
	f := newEngineFixture(t, rule)
	f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
	f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1"), expensiveAd("acc-1", "ad-2")}

	_, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	logs := f.logs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, "ad-2", logs[0].AdID)
}

func TestRunSweep_CampaignAllowlist(t *testing.T) {
	rule := cplRule("rule-1", "user-1", "acc-1")
	rule.TargetCampaigns = []string{"camp-2"}
	f := newEngineFixture(t, rule)
	f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
	f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1")}

	_, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Empty(t, f.logs.all())
}

func TestRunSweep_ClicksNoLeadsWindows(t *testing.T) {
	today := startOfDay(sweepNow)
	history := []models.AdDailyMetric{
		{AdID: "ad-1", Date: today.AddDate(0, 0, -5), Clicks: 100},
		{AdID: "ad-1", Date: today.AddDate(0, 0, -1), Clicks: 30},
		{AdID: "ad-1", Date: today, Clicks: 25},
	}
	tests := []struct {
		window models.TimeWindow
		want   bool
	}{
		{models.TimeWindowDaily, false},
		{models.TimeWindow24h, true},
		{models.TimeWindowSinceLaunch, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.window), func(t *testing.T) {
			rule := models.Rule{
				ID:             "rule-1",
				UserID:         "user-1",
				Name:           "Clicks without leads",
				Type:           models.RuleTypeClicksNoLeads,
				Conditions:     models.RuleConditions{Threshold: 50, TimeWindow: tt.window},
				Actions:        models.RuleActions{Notify: true},
				TargetAccounts: []string{"acc-1"},
				IsActive:       true,
			}
			f := newEngineFixture(t, rule)
			f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
			f.accounts.today["acc-1"] = []models.AdDailyMetric{{AccountID: "acc-1", AdID: "ad-1", Date: today, Clicks: 25}}
			f.accounts.daily["ad-1"] = history

			_, err := f.engine.RunSweep(context.Background(), sweepNow)
			require.NoError(t, err)
			if !tt.want {
				assert.Empty(t, f.logs.all())
				return
			}
			logs := f.logs.all()
			require.Len(t, logs, 1)
			if tt.window == models.TimeWindow24h {
				assert.Equal(t, int64(55), logs[0].MetricsSnapshot.Clicks)
				assert.Contains(t, logs[0].Reason, "last 24 hours")
			} else {
				assert.Equal(t, int64(155), logs[0].MetricsSnapshot.Clicks)
			}
		})
	}
}

func TestRunSweep_FastSpend(t *testing.T) {
	rule := models.Rule{
		ID:             "rule-1",
		UserID:         "user-1",
		Name:           "Burn rate",
		Type:           models.RuleTypeFastSpend,
		Conditions:     models.RuleConditions{Threshold: 20},
		Actions:        models.RuleActions{StopAd: true},
		TargetAccounts: []string{"acc-1"},
		IsActive:       true,
	}
	f := newEngineFixture(t, rule)
	f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
	row := expensiveAd("acc-1", "ad-1")
	row.Spent = 1000
	f.accounts.today["acc-1"] = []models.AdDailyMetric{row}
	f.accounts.budgets["ad-1"] = floatPtr(1000)
	f.accounts.realtime["ad-1"] = []models.SpendSample{
		{Spent: 1000, Timestamp: sweepNow.Add(-2 * time.Minute)},
		{Spent: 750, Timestamp: sweepNow.Add(-10 * time.Minute)},
		{Spent: 100, Timestamp: sweepNow.Add(-2 * time.Hour)},
	}

	summary, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Triggered)
	logs := f.logs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionTypeStopped, logs[0].ActionType)
	assert.Empty(t, f.notifier.events)
}

func TestRunSweep_RuleWithoutActionsIsSkipped(t *testing.T) {
	rule := cplRule("rule-1", "user-1", "acc-1")
	rule.Actions = models.RuleActions{}
	f := newEngineFixture(t, rule)
	f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
	f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1")}

	summary, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Zero(t, summary.Triggered)
	assert.Empty(t, f.logs.all())
	assert.Zero(t, f.rules.get("rule-1").TriggerCount)
}

func TestRunSweep_PersistFailureCountsAsUserError(t *testing.T) {
	f := newEngineFixture(t, cplRule("rule-1", "user-1", "acc-1"))
	f.logs.createErr = errStore
	f.accounts.accounts = []models.AdAccount{{ID: "acc-1", UserID: "user-1"}}
	f.accounts.today["acc-1"] = []models.AdDailyMetric{expensiveAd("acc-1", "ad-1")}

	summary, err := f.engine.RunSweep(context.Background(), sweepNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.UserErrors)
	assert.Zero(t, f.rules.get("rule-1").TriggerCount)
}
