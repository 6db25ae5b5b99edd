// Package maturitysweep runs the scheduled job that matures long-term
// investments whose lock period has elapsed, releasing their allocations
// back into the long-term wallet.
package maturitysweep

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/investing"
	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/config"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/metrics"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/retry"
)

// Worker schedules periodic maturation sweeps
type Worker struct {
	investing *investing.Service
	schedule  string
	batchSize int
	cron      *cron.Cron
	logger    *zap.Logger
}

// New creates a maturity sweep worker from the engine configuration
func New(investSvc *investing.Service, cfg *config.Config, logger *zap.Logger) *Worker {
	return &Worker{
		investing: investSvc,
		schedule:  cfg.Workers.MaturitySweepSchedule,
		batchSize: cfg.Engine.SweepBatchSize,
		logger:    logger,
	}
}

// Start registers the sweep on its cron schedule
func (w *Worker) Start() error {
	w.cron = cron.New()
	_, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		w.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("maturity sweep scheduled", zap.String("schedule", w.schedule))
	return nil
}

// Shutdown halts the schedule and waits for a running sweep to finish
func (w *Worker) Shutdown(timeout time.Duration) error {
	if w.cron == nil {
		return nil
	}
	ctx := w.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
	w.logger.Info("maturity sweep stopped")
	return nil
}

// Sweep matures all due investments, retrying transient failures
func (w *Worker) Sweep(ctx context.Context) {
	started := time.Now()

	var matured int
	err := retry.Do(ctx, retry.DefaultConfig(), domainerrors.IsRetryable, func() error {
		var err error
		matured, err = w.investing.MatureDue(ctx, w.batchSize)
		return err
	})
	metrics.RecordOperation("maturity_sweep", err)
	if err != nil {
		w.logger.Error("maturity sweep failed", zap.Error(err))
		return
	}

	metrics.MaturedInvestments.Add(float64(matured))
	w.logger.Info("maturity sweep complete",
		zap.Int("matured", matured),
		zap.Duration("elapsed", time.Since(started)))
}
