package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Sweeper runs one rule engine pass.
type Sweeper interface {
	RunSweep(ctx context.Context, now time.Time) (SweepSummary, error)
}

// SweepWorker 定时触发巡检；重叠的触发合并为同一次执行
type SweepWorker struct {
	sweeper  Sweeper
	interval time.Duration
	group    singleflight.Group
	now      func() time.Time
	logger   *logrus.Logger
}

// NewSweepWorker 创建巡检任务
func NewSweepWorker(sweeper Sweeper, interval time.Duration, logger *logrus.Logger) *SweepWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &SweepWorker{sweeper: sweeper, interval: interval, now: time.Now, logger: logger}
}

// Start runs a sweep immediately and then on every tick until ctx is cancelled.
func (w *SweepWorker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Infof("sweep worker started, interval %s", w.interval)
	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweep worker stopped")
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SweepWorker) tick(ctx context.Context) {
	if _, err := w.TriggerNow(ctx); err != nil && ctx.Err() == nil {
		w.logger.Errorf("sweep failed: %v", err)
	}
}

// TriggerNow runs a sweep, or joins the one already in flight and returns its result.
func (w *SweepWorker) TriggerNow(ctx context.Context) (SweepSummary, error) {
	v, err, shared := w.group.Do("sweep", func() (interface{}, error) {
		return w.sweeper.RunSweep(ctx, w.now())
	})
	if shared {
		w.logger.Debug("sweep trigger joined an in-flight sweep")
	}
	summary, _ := v.(SweepSummary)
	return summary, err
}
