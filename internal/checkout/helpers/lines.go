package helpers

import (
	"github.com/angelmondragon/dailycart-backend/internal/cart"
	"github.com/angelmondragon/dailycart-backend/internal/checkout/reservation"
	"github.com/angelmondragon/dailycart-backend/internal/orders"
)

// OrderLines turns the priced cart view into order item snapshots.
func OrderLines(view cart.CartView) []orders.LineInput {
	lines := make([]orders.LineInput, 0, len(view.Items))
	for _, item := range view.Items {
		lines = append(lines, orders.LineInput{
			ProductID:    item.ProductID,
			VariantID:    item.VariantID,
			ProductName:  item.ProductName,
			Category:     item.Category,
			VariantLabel: item.VariantLabel,
			Unit:         item.Unit,
			Quantity:     item.Quantity,
			MRP:          item.MRP,
			SellingPrice: item.SellingPrice,
		})
	}
	return lines
}

// ReservationRequests lists the stock each cart line needs.
func ReservationRequests(view cart.CartView) []reservation.Request {
	requests := make([]reservation.Request, 0, len(view.Items))
	for _, item := range view.Items {
		requests = append(requests, reservation.Request{VariantID: item.VariantID, Qty: item.Quantity})
	}
	return requests
}
