package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"checkout/internal/domain"
)

type PendingResolver interface {
	ListStalePending(ctx context.Context, minAge time.Duration, limit int) ([]*domain.PurchasedItem, error)
	ResolvePending(ctx context.Context, purchase *domain.PurchasedItem) (bool, error)
}

type Summary struct {
	Checked   int
	Completed int
	Failed    int
}

// Reconciler completes purchases whose browser redirect never reached the
// callback endpoint, using the gateway status API as the source of truth.
type Reconciler struct {
	resolver  PendingResolver
	interval  time.Duration
	minAge    time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewReconciler(resolver PendingResolver, interval, minAge time.Duration, batchSize int, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		resolver:  resolver,
		interval:  interval,
		minAge:    minAge,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting reconciler...",
		zap.Duration("interval", r.interval),
		zap.Duration("min_age", r.minAge))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped.")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce resolves one batch of stale pending purchases. A failure on one
// purchase is logged and does not stop the pass.
func (r *Reconciler) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	purchases, err := r.resolver.ListStalePending(ctx, r.minAge, r.batchSize)
	if err != nil {
		return summary, err
	}
	if len(purchases) == 0 {
		r.logger.Debug("No stale pending purchases found.")
		return summary, nil
	}

	for _, p := range purchases {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Checked++

		completed, err := r.resolver.ResolvePending(ctx, p)
		if err != nil {
			summary.Failed++
			r.logger.Warn("Failed to resolve pending purchase",
				zap.String("purchase_id", p.ID),
				zap.Error(err))
			continue
		}
		if completed {
			summary.Completed++
		}
	}

	r.logger.Info("Reconciliation pass finished",
		zap.Int("checked", summary.Checked),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed))
	return summary, nil
}
