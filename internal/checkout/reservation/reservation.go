// Package reservation decrements stock for every line of a checkout inside the caller's transaction.
package reservation

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
)

// StockAdjuster is the inventory ledger's transactional write path.
type StockAdjuster interface {
	AdjustStockTx(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int) (*models.ProductVariant, error)
}

// Request asks for Qty units of one variant.
type Request struct {
	VariantID uuid.UUID
	Qty       int
}

// Merge folds duplicate variants together and orders the result by variant id,
// so concurrent checkouts lock rows in the same order.
func Merge(requests []Request) []Request {
	byVariant := make(map[uuid.UUID]int, len(requests))
	for _, req := range requests {
		byVariant[req.VariantID] += req.Qty
	}
	merged := make([]Request, 0, len(byVariant))
	for id, qty := range byVariant {
		merged = append(merged, Request{VariantID: id, Qty: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return bytes.Compare(merged[i].VariantID[:], merged[j].VariantID[:]) < 0
	})
	return merged
}

// Reserve takes every requested unit or fails on the first shortfall. The caller
// rolls back tx on error, so partial decrements never commit.
func Reserve(ctx context.Context, tx *gorm.DB, stock StockAdjuster, requests []Request) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "reservation requires a transaction")
	}
	for _, req := range Merge(requests) {
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive").
				WithDetails(map[string]any{"variant_id": req.VariantID, "quantity": req.Qty})
		}
		if _, err := stock.AdjustStockTx(ctx, tx, req.VariantID, -req.Qty); err != nil {
			return err
		}
	}
	return nil
}
