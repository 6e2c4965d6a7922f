package reorder

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/internal/cart"
	"github.com/angelmondragon/dailycart-backend/internal/orders"
	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

// Reasons a past order line could not be put back in the cart.
const (
	ReasonUnavailable       = "unavailable"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonInvalid           = "invalid"
)

type orderReader interface {
	Get(ctx context.Context, orderID uuid.UUID, actor auth.Actor) (*orders.OrderView, error)
}

type cartWriter interface {
	Get(ctx context.Context, userID uuid.UUID) (*cart.CartView, error)
	AddItem(ctx context.Context, userID, productID, variantID uuid.UUID, qty int) (*cart.CartView, error)
}

// Service copies the lines of a past order into the customer's cart.
type Service interface {
	Reorder(ctx context.Context, orderID uuid.UUID, actor auth.Actor) (*Result, error)
}

// Line identifies one order line and the quantity that was requested.
type Line struct {
	ProductID   uuid.UUID `json:"product_id"`
	VariantID   uuid.UUID `json:"variant_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
}

// SkippedLine is a line left out of the cart, with a machine-readable reason.
type SkippedLine struct {
	Line
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Result is the cart after every addable line went in. Added lines are priced
// at the catalogue's current price, not the order's snapshot.
type Result struct {
	OrderID uuid.UUID      `json:"order_id"`
	Cart    *cart.CartView `json:"cart"`
	Added   []Line         `json:"added"`
	Skipped []SkippedLine  `json:"skipped"`
}

type service struct {
	orders orderReader
	carts  cartWriter
	logg   *logger.Logger
}

func NewService(ordersSvc orderReader, carts cartWriter, logg *logger.Logger) (Service, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{orders: ordersSvc, carts: carts, logg: logg}, nil
}

// Reorder adds each line of the order through the normal cart path, so stock
// is checked against the merged quantity. Lines that cannot be added are
// reported and do not stop the rest.
func (s *service) Reorder(ctx context.Context, orderID uuid.UUID, actor auth.Actor) (*Result, error) {
	order, err := s.orders.Get(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}

	result := &Result{OrderID: order.ID, Added: []Line{}, Skipped: []SkippedLine{}}
	for _, item := range order.Items {
		line := Line{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
		}
		view, err := s.carts.AddItem(ctx, actor.UserID, item.ProductID, item.VariantID, item.Quantity)
		if err != nil {
			reason, ok := skipReason(err)
			if !ok {
				return nil, err
			}
			result.Skipped = append(result.Skipped, SkippedLine{Line: line, Reason: reason, Message: pkgerrors.As(err).Message()})
			continue
		}
		result.Added = append(result.Added, line)
		result.Cart = view
	}

	if result.Cart == nil {
		view, err := s.carts.Get(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		result.Cart = view
	}

	if len(result.Skipped) > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":      order.ID.String(),
			"lines_added":   len(result.Added),
			"lines_skipped": len(result.Skipped),
		})
		s.logg.Warn(logCtx, "reorder skipped lines")
	}
	return result, nil
}

// skipReason classifies per-line failures. Anything else aborts the reorder.
func skipReason(err error) (string, bool) {
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return ReasonUnavailable, true
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
		return ReasonInsufficientStock, true
	case pkgerrors.HasCode(err, pkgerrors.CodeValidation):
		return ReasonInvalid, true
	}
	return "", false
}
