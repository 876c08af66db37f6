package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine and API collectors on a private registry.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	Sweeps         *prometheus.CounterVec
	SweepDuration  prometheus.Histogram
	RulesTriggered *prometheus.CounterVec
	StopFailures   prometheus.Counter
	Notifications  *prometheus.CounterVec
	Reverts        *prometheus.CounterVec
	RateLimitDrops *prometheus.CounterVec
	FeedClients    prometheus.Gauge
}

// New 创建并注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "sweeps_total",
			Help:      "Rule engine sweeps by outcome.",
		}, []string{"outcome"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adpilot",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one rule engine sweep.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		RulesTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "rules_triggered_total",
			Help:      "Rule triggers by rule type and action type.",
		}, []string{"rule_type", "action_type"}),
		StopFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "stop_failures_total",
			Help:      "Failed attempts to stop an ad.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "notifications_total",
			Help:      "Rule notifications by delivery result.",
		}, []string{"result"}),
		Reverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "reverts_total",
			Help:      "Revert requests by resulting reason.",
		}, []string{"reason"}),
		RateLimitDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpilot",
			Name:      "rate_limit_drops_total",
			Help:      "HTTP requests rejected with 429, by limiter prefix.",
		}, []string{"prefix"}),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adpilot",
			Name:      "action_feed_clients",
			Help:      "Connected live action feed clients.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Sweeps, m.SweepDuration, m.RulesTriggered, m.StopFailures,
		m.Notifications, m.Reverts, m.RateLimitDrops, m.FeedClients,
	)
	return m
}

// Gatherer returns the registry for exposition or tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})
}

// ObserveSweep records one finished sweep.
func (m *Metrics) ObserveSweep(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Sweeps.WithLabelValues(outcome).Inc()
	m.SweepDuration.Observe(d.Seconds())
}

func (m *Metrics) IncTriggered(ruleType, actionType string) {
	if m == nil {
		return
	}
	m.RulesTriggered.WithLabelValues(ruleType, actionType).Inc()
}

func (m *Metrics) IncStopFailure() {
	if m == nil {
		return
	}
	m.StopFailures.Inc()
}

// IncNotification result is "sent" or "failed".
func (m *Metrics) IncNotification(sent bool) {
	if m == nil {
		return
	}
	result := "failed"
	if sent {
		result = "sent"
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRevert(reason string) {
	if m == nil {
		return
	}
	m.Reverts.WithLabelValues(reason).Inc()
}

// IncRateLimitDrop uses prefix "global" when none is given.
func (m *Metrics) IncRateLimitDrop(prefix string) {
	if m == nil {
		return
	}
	if prefix == "" {
		prefix = "global"
	}
	m.RateLimitDrops.WithLabelValues(prefix).Inc()
}

func (m *Metrics) SetFeedClients(n int) {
	if m == nil {
		return
	}
	m.FeedClients.Set(float64(n))
}
