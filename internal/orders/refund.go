package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

// CalculateRefund is the amount owed back to the customer for order.
// Cash orders never collected money before delivery, so they refund nothing.
func CalculateRefund(order models.Order) decimal.Decimal {
	if order.PaymentMethod.IsCashOnDelivery() {
		return decimal.Zero
	}
	if order.Status != enums.OrderStatusCancelled || order.CancelledFromStatus == nil {
		return decimal.Zero
	}

	var refund decimal.Decimal
	switch *order.CancelledFromStatus {
	case enums.OrderStatusPending, enums.OrderStatusConfirmed:
		refund = order.TotalAmount
	case enums.OrderStatusPacked:
		refund = order.TotalAmount.Sub(order.DeliveryCharge)
	default:
		return decimal.Zero
	}
	if refund.IsNegative() {
		return decimal.Zero
	}
	return refund.Round(2)
}
