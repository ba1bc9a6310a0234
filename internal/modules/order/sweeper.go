package order

import (
	"context"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/pkg/logging"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"go.uber.org/zap"
)

const sweepBatch = 100

// Sweeper cancels gateway orders left PENDING and UNPAID past the payment
// timeout and returns their stock.
type Sweeper struct {
	repo     Repository
	orders   Service
	timeout  time.Duration
	interval time.Duration
	metrics  *metrics.Registry
	now      func() time.Time
}

func NewSweeper(repo Repository, orders Service, timeout, interval time.Duration, m *metrics.Registry) *Sweeper {
	return &Sweeper{repo: repo, orders: orders, timeout: timeout, interval: interval, metrics: m, now: time.Now}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				logging.FromContext(ctx).Error("order_sweep_failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce cancels one batch of stale orders and reports how many it cancelled.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.timeout).UnixMilli()
	stale, err := s.repo.ListStale(ctx, MethodGateway, cutoff, sweepBatch)
	if err != nil {
		return 0, err
	}
	logger := logging.FromContext(ctx)
	n := 0
	for _, o := range stale {
		_, cancelled, err := s.orders.CancelUnpaid(ctx, o.ID, ReasonPaymentTimeout)
		if err != nil {
			// Paid or moved on since the listing; the next sweep will not see it.
			logger.Warn("order_sweep_skipped", zap.String("order_id", o.ID.String()), zap.Error(err))
			continue
		}
		if cancelled {
			n++
		}
	}
	s.metrics.Swept(n)
	if n > 0 {
		logger.Info("order_sweep_done", zap.Int("cancelled", n), zap.Int("candidates", len(stale)))
	}
	return n, nil
}
