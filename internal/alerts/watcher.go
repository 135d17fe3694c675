// Package alerts periodically reports products that need restocking.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"api_pos/internal/pos"
)

// LowStockLister is implemented by pos.Service.
type LowStockLister interface {
	LowStockProducts(ctx context.Context, threshold int) ([]*pos.Product, error)
}

// Watcher recomputes the low-stock list on a fixed schedule and logs it.
// It only reads; nothing is kept between ticks.
type Watcher struct {
	source    LowStockLister
	threshold int
	interval  time.Duration
	logger    *zap.Logger
	scheduler *cron.Cron

	// OnCheck, when set, receives the result of every scheduled check.
	OnCheck func([]*pos.Product, error)
}

// NewWatcher creates a Watcher. interval is rounded down to whole seconds by the scheduler.
func NewWatcher(source LowStockLister, threshold int, interval time.Duration, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		source:    source,
		threshold: threshold,
		interval:  interval,
		logger:    logger,
		scheduler: cron.New(),
	}
}

// Check runs a single low-stock pass.
func (w *Watcher) Check(ctx context.Context) ([]*pos.Product, error) {
	low, err := w.source.LowStockProducts(ctx, w.threshold)
	if err != nil {
		w.logger.Error("low stock check failed", zap.Error(err))
		return nil, err
	}
	if len(low) == 0 {
		w.logger.Debug("low stock check: nothing to restock", zap.Int("threshold", w.threshold))
		return low, nil
	}

	items := make([]string, 0, len(low))
	for _, p := range low {
		items = append(items, fmt.Sprintf("%s (%d)", p.Name, p.Stock))
	}
	w.logger.Warn("products need restocking",
		zap.Int("threshold", w.threshold),
		zap.Int("count", len(low)),
		zap.Strings("products", items),
	)
	return low, nil
}

// Run schedules checks until ctx is cancelled, then waits for a running
// check to finish.
func (w *Watcher) Run(ctx context.Context) error {
	_, err := w.scheduler.AddFunc("@every "+w.interval.String(), func() {
		tickCtx, cancel := context.WithTimeout(ctx, w.interval)
		defer cancel()
		low, err := w.Check(tickCtx)
		if w.OnCheck != nil {
			w.OnCheck(low, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule low stock check: %w", err)
	}

	w.logger.Info("low stock watcher started",
		zap.Duration("interval", w.interval),
		zap.Int("threshold", w.threshold),
	)
	w.scheduler.Start()

	<-ctx.Done()
	<-w.scheduler.Stop().Done()
	w.logger.Info("low stock watcher stopped")
	return nil
}
