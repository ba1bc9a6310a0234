package order

import (
	"context"
	"fmt"

	"github.com/georgemunganga/storefront-backend/internal/modules/cart"
	"github.com/georgemunganga/storefront-backend/internal/modules/catalog"
	"github.com/georgemunganga/storefront-backend/internal/modules/inventory"
	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/google/uuid"
)

// maxLineQuantity caps a single order line so quantities and subtotals cannot overflow.
const maxLineQuantity = 10000

// CartReader loads a user's cart lines.
type CartReader interface {
	Lines(ctx context.Context, userID string) ([]cart.Line, error)
}

// ProductReader loads current catalog state for a set of products.
type ProductReader interface {
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Product, error)
}

// CandidateRequest selects what to turn into order lines. ProductIDs narrows
// selected cart lines; Items is used for buy-now.
type CandidateRequest struct {
	Source     Source
	ProductIDs []uuid.UUID
	Items      []inventory.Reservation
}

// Snapshot is a priced, stock-checked set of order candidate lines.
type Snapshot struct {
	Source Source
	Lines  []Line
	Total  int64
}

// SnapshotReader resolves order candidates. Preview and checkout both go through it.
type SnapshotReader struct {
	cart     CartReader
	products ProductReader
}

func NewSnapshotReader(c CartReader, p ProductReader) *SnapshotReader {
	return &SnapshotReader{cart: c, products: p}
}

// ResolveOrderCandidates prices the requested lines at current catalog prices
// and checks each against current stock. It has no side effects.
func (r *SnapshotReader) ResolveOrderCandidates(ctx context.Context, userID string, req CandidateRequest) (*Snapshot, error) {
	var wanted []inventory.Reservation
	switch req.Source {
	case SourceBuyNow:
		items, err := mergeItems(req.Items)
		if err != nil {
			return nil, err
		}
		wanted = items
	case SourceCart, "":
		req.Source = SourceCart
		items, err := r.selectedCartLines(ctx, userID, req.ProductIDs)
		if err != nil {
			return nil, err
		}
		wanted = items
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown source %q", req.Source))
	}

	ids := make([]uuid.UUID, len(wanted))
	for i, w := range wanted {
		ids[i] = w.ProductID
	}
	products, err := r.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Source: req.Source, Lines: make([]Line, 0, len(wanted))}
	for _, w := range wanted {
		p, ok := products[w.ProductID]
		if !ok {
			return nil, apperr.NotFound(apperr.CodeProductNotFound,
				fmt.Sprintf("product %s not found", w.ProductID))
		}
		if w.Quantity <= 0 || w.Quantity > maxLineQuantity {
			return nil, apperr.Validation(fmt.Sprintf("quantity for %s must be between 1 and %d", p.Name, maxLineQuantity))
		}
		if w.Quantity > p.Stock {
			return nil, apperr.Conflict(apperr.CodeInsufficientStock,
				fmt.Sprintf("insufficient stock for %s: requested %d, available %d", p.Name, w.Quantity, p.Stock))
		}
		l := Line{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  w.Quantity,
			ImageURL:  p.ImageURL,
		}
		snap.Lines = append(snap.Lines, l)
		snap.Total += l.Subtotal()
	}
	return snap, nil
}

func (r *SnapshotReader) selectedCartLines(ctx context.Context, userID string, only []uuid.UUID) ([]inventory.Reservation, error) {
	lines, err := r.cart.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeEmptyCart, "cart is empty")
	}
	var narrow map[uuid.UUID]bool
	if len(only) > 0 {
		narrow = make(map[uuid.UUID]bool, len(only))
		for _, id := range only {
			narrow[id] = true
		}
	}
	out := []inventory.Reservation{}
	for _, l := range lines {
		if !l.Selected || (narrow != nil && !narrow[l.ProductID]) {
			continue
		}
		out = append(out, inventory.Reservation{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	if len(out) == 0 {
		return nil, apperr.New(apperr.KindValidation, apperr.CodeNoSelection, "no cart lines selected")
	}
	return out, nil
}

// mergeItems validates buy-now items and folds duplicates together, keeping first-seen order.
func mergeItems(items []inventory.Reservation) ([]inventory.Reservation, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	index := make(map[uuid.UUID]int, len(items))
	out := make([]inventory.Reservation, 0, len(items))
	for _, it := range items {
		if it.ProductID == uuid.Nil {
			return nil, apperr.Validation("product_id is required")
		}
		if it.Quantity <= 0 {
			return nil, apperr.Validation("quantity must be positive")
		}
		if it.Quantity > maxLineQuantity {
			return nil, apperr.Validation(fmt.Sprintf("quantity must not exceed %d", maxLineQuantity))
		}
		if i, ok := index[it.ProductID]; ok {
			if out[i].Quantity > maxLineQuantity-it.Quantity {
				return nil, apperr.Validation(fmt.Sprintf("quantity must not exceed %d", maxLineQuantity))
			}
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}
