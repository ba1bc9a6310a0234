package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/georgemunganga/storefront-backend/internal/pkg/logging"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger is the only path through which stock changes.
type Ledger interface {
	// AdjustStock atomically applies delta unless it would make stock negative.
	// false means nothing was written.
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (bool, error)

	// Restore returns every reservation to stock. All reservations are attempted;
	// the returned error joins the individual failures.
	Restore(ctx context.Context, reservations []Reservation) error
}

type ledger struct {
	store   StockStore
	metrics *metrics.Registry
}

// NewLedger creates a ledger over store. m may be nil.
func NewLedger(store StockStore, m *metrics.Registry) Ledger {
	return &ledger{store: store, metrics: m}
}

func (l *ledger) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (bool, error) {
	if delta == 0 {
		return true, nil
	}
	applied, err := l.store.AdjustStock(ctx, productID, delta)
	if err != nil {
		return false, err
	}
	l.metrics.StockAdjusted(delta, applied)
	if !applied {
		logging.FromContext(ctx).Info("stock_adjust_rejected",
			zap.String("product_id", productID.String()),
			zap.Int("delta", delta))
	}
	return applied, nil
}

func (l *ledger) Restore(ctx context.Context, reservations []Reservation) error {
	var errs []error
	for _, res := range reservations {
		if res.Quantity <= 0 {
			continue
		}
		applied, err := l.AdjustStock(ctx, res.ProductID, res.Quantity)
		if err == nil && !applied {
			err = errors.New("increment rejected")
		}
		if err != nil {
			logging.FromContext(ctx).Error("stock_restore_failed",
				zap.String("product_id", res.ProductID.String()),
				zap.Int("quantity", res.Quantity),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("restore %s: %w", res.ProductID, err))
		}
	}
	if len(errs) > 0 {
		return apperr.Internal("stock restore incomplete", errors.Join(errs...))
	}
	return nil
}
