package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/internal/coupons"
	"github.com/angelmondragon/dailycart-backend/internal/inventory"
	"github.com/angelmondragon/dailycart-backend/pkg/db"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type couponEvaluator interface {
	ValidateForItemsTx(ctx context.Context, tx *gorm.DB, code string, userID uuid.UUID, subtotal decimal.Decimal, lines []coupons.Line) (*coupons.Eligibility, error)
}

// Service owns the customer's cart and prices it on every call.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, userID, productID, variantID uuid.UUID, qty int) (*CartView, error)
	UpdateQuantity(ctx context.Context, userID, productID, variantID uuid.UUID, qty int) (*CartView, error)
	RemoveItem(ctx context.Context, userID, productID, variantID uuid.UUID) (*CartView, error)
	Clear(ctx context.Context, userID uuid.UUID) (*CartView, error)
	ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*CartView, error)
	RemoveCoupon(ctx context.Context, userID uuid.UUID) (*CartView, error)
	SnapshotTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Snapshot, error)
	ClearTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

// Snapshot is a priced cart read inside a caller's transaction. Coupon is nil
// when no code is applied; an ineligible coupon is reported, not dropped.
type Snapshot struct {
	Cart     *models.Cart
	Products map[uuid.UUID]*models.Product
	Coupon   *coupons.Eligibility
	View     CartView
}

type service struct {
	repo    Repository
	catalog inventory.Repository
	coupons couponEvaluator
	tx      txRunner
	policy  Policy
	logg    *logger.Logger
}

// NewService builds the cart pricing engine.
func NewService(repo Repository, catalog inventory.Repository, evaluator couponEvaluator, tx txRunner, policy Policy, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("coupon evaluator required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		catalog: catalog,
		coupons: evaluator,
		tx:      tx,
		policy:  policy,
		logg:    logg,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.repo.WithTx(tx).FindByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				view = s.emptyView(userID)
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		view, err = s.settle(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) AddItem(ctx context.Context, userID, productID, variantID uuid.UUID, qty int) (*CartView, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return s.mutate(ctx, userID, func(tx *gorm.DB, repo Repository, cart *models.Cart) error {
		_, variant, err := s.loadSellable(ctx, tx, productID, variantID)
		if err != nil {
			return err
		}

		existing, err := repo.FindItem(ctx, cart.ID, productID, variantID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}

		merged := qty
		if existing != nil {
			merged += existing.Quantity
		}
		if variant.Stock < merged {
			return inventory.InsufficientStock(variantID, variant.Stock, merged)
		}

		if existing != nil {
			return wrapInternal(repo.UpdateItemQuantity(ctx, existing.ID, merged), "update cart item")
		}

		position, err := repo.NextPosition(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "position cart item")
		}
		return wrapInternal(repo.CreateItem(ctx, &models.CartItem{
			ID:           uuid.New(),
			CartID:       cart.ID,
			ProductID:    productID,
			VariantID:    variantID,
			Quantity:     merged,
			MRP:          variant.MRP,
			SellingPrice: variant.SellingPrice,
			Discount:     variant.UnitDiscount(),
			Position:     position,
		}), "add cart item")
	})
}

func (s *service) UpdateQuantity(ctx context.Context, userID, productID, variantID uuid.UUID, qty int) (*CartView, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, userID, productID, variantID)
	}
	return s.mutate(ctx, userID, func(tx *gorm.DB, repo Repository, cart *models.Cart) error {
		existing, err := repo.FindItem(ctx, cart.ID, productID, variantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return itemNotFound(productID, variantID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}
		_, variant, err := s.loadSellable(ctx, tx, productID, variantID)
		if err != nil {
			return err
		}
		if variant.Stock < qty {
			return inventory.InsufficientStock(variantID, variant.Stock, qty)
		}
		return wrapInternal(repo.UpdateItemQuantity(ctx, existing.ID, qty), "update cart item")
	})
}

// RemoveItem is unconditional: removing a line that is not in the cart
// returns the cart unchanged.
func (s *service) RemoveItem(ctx context.Context, userID, productID, variantID uuid.UUID) (*CartView, error) {
	return s.mutate(ctx, userID, func(_ *gorm.DB, repo Repository, cart *models.Cart) error {
		if _, err := repo.DeleteItem(ctx, cart.ID, productID, variantID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
		}
		return nil
	})
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	return s.mutate(ctx, userID, func(tx *gorm.DB, _ Repository, cart *models.Cart) error {
		return s.ClearTx(ctx, tx, cart.ID)
	})
}

func (s *service) ClearTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	if err := repo.DeleteItems(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart items")
	}
	return wrapInternal(repo.SetCoupon(ctx, cartID, nil), "clear cart coupon")
}

func (s *service) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*CartView, error) {
	code = coupons.NormalizeCode(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	return s.mutate(ctx, userID, func(tx *gorm.DB, repo Repository, cart *models.Cart) error {
		products, err := s.loadProducts(ctx, tx, cart.Items)
		if err != nil {
			return err
		}
		totals := ComputeTotals(cart.Items, decimal.Zero, s.policy)
		result, err := s.coupons.ValidateForItemsTx(ctx, tx, code, cart.UserID, totals.Subtotal, couponLines(cart.Items, products))
		if err != nil {
			return err
		}
		if !result.Eligible {
			return coupons.IneligibleError(code, result.Reason)
		}
		return wrapInternal(repo.SetCoupon(ctx, cart.ID, &code), "apply coupon")
	})
}

func (s *service) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	return s.mutate(ctx, userID, func(_ *gorm.DB, repo Repository, cart *models.Cart) error {
		return wrapInternal(repo.SetCoupon(ctx, cart.ID, nil), "remove coupon")
	})
}

func (s *service) SnapshotTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Snapshot, error) {
	cart, err := s.repo.WithTx(tx).FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return s.snapshot(ctx, tx, cart)
}

type mutation func(tx *gorm.DB, repo Repository, cart *models.Cart) error

// mutate runs fn against the user's cart, creating it on first use, then
// re-prices the result. Concurrent mutations are last-write-wins.
func (s *service) mutate(ctx context.Context, userID uuid.UUID, fn mutation) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.findOrCreate(ctx, repo, userID)
		if err != nil {
			return err
		}
		if err := fn(tx, repo, cart); err != nil {
			return err
		}
		cart, err = repo.FindByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart")
		}
		view, err = s.settle(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithUserID(ctx, userID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"total_items":  view.Totals.TotalItems,
		"total_amount": view.Totals.TotalAmount.StringFixed(2),
	})
	s.logg.Debug(logCtx, "cart updated")
	return view, nil
}

// settle prices the cart and drops an applied coupon that no longer qualifies.
func (s *service) settle(ctx context.Context, tx *gorm.DB, cart *models.Cart) (*CartView, error) {
	snap, err := s.snapshot(ctx, tx, cart)
	if err != nil {
		return nil, err
	}
	if snap.Coupon == nil || snap.Coupon.Eligible {
		return &snap.View, nil
	}

	if err := s.repo.WithTx(tx).SetCoupon(ctx, cart.ID, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "drop ineligible coupon")
	}
	reason := snap.Coupon.Reason
	view := snap.View
	view.CouponCode = nil
	view.CouponRemovedReason = &reason
	view.Totals = ComputeTotals(cart.Items, decimal.Zero, s.policy)

	logCtx := s.logg.WithUserID(ctx, cart.UserID.String())
	s.logg.Info(s.logg.WithField(logCtx, "reason", reason), "coupon removed from cart")
	return &view, nil
}

func (s *service) snapshot(ctx context.Context, tx *gorm.DB, cart *models.Cart) (*Snapshot, error) {
	products, err := s.loadProducts(ctx, tx, cart.Items)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Cart: cart, Products: products}
	discount := decimal.Zero
	if cart.CouponCode != nil && *cart.CouponCode != "" {
		subtotal := ComputeTotals(cart.Items, decimal.Zero, s.policy).Subtotal
		result, err := s.coupons.ValidateForItemsTx(ctx, tx, *cart.CouponCode, cart.UserID, subtotal, couponLines(cart.Items, products))
		if err != nil {
			return nil, err
		}
		snap.Coupon = result
		if result.Eligible {
			discount = result.Discount
		}
	}

	snap.View = CartView{
		ID:         cart.ID,
		UserID:     cart.UserID,
		Items:      buildItemViews(cart.Items, products),
		CouponCode: cart.CouponCode,
		Totals:     ComputeTotals(cart.Items, discount, s.policy),
	}
	return snap, nil
}

func (s *service) findOrCreate(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	cart = &models.Cart{ID: uuid.New(), UserID: userID}
	if err := repo.Create(ctx, cart); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, err, "cart created concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return cart, nil
}

func (s *service) loadSellable(ctx context.Context, tx *gorm.DB, productID, variantID uuid.UUID) (*models.Product, *models.ProductVariant, error) {
	product, err := s.catalog.WithTx(tx).FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, productNotFound(productID)
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, nil, productNotFound(productID)
	}
	variant := findVariant(product, variantID)
	if variant == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
			WithDetails(map[string]any{"reason": "variant_not_found", "variant_id": variantID})
	}
	return product, variant, nil
}

func (s *service) loadProducts(ctx context.Context, tx *gorm.DB, items []models.CartItem) (map[uuid.UUID]*models.Product, error) {
	catalog := s.catalog.WithTx(tx)
	products := make(map[uuid.UUID]*models.Product, len(items))
	for _, item := range items {
		if _, ok := products[item.ProductID]; ok {
			continue
		}
		product, err := catalog.FindProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		products[item.ProductID] = product
	}
	return products, nil
}

func (s *service) emptyView(userID uuid.UUID) *CartView {
	return &CartView{
		UserID: userID,
		Items:  []ItemView{},
		Totals: ComputeTotals(nil, decimal.Zero, s.policy),
	}
}

func couponLines(items []models.CartItem, products map[uuid.UUID]*models.Product) []coupons.Line {
	lines := make([]coupons.Line, 0, len(items))
	for _, item := range items {
		line := coupons.Line{
			ProductID: item.ProductID,
			Amount:    item.SellingPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		if product, ok := products[item.ProductID]; ok {
			line.Category = product.Category
		}
		lines = append(lines, line)
	}
	return lines
}

func productNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
		WithDetails(map[string]any{"reason": "product_not_found", "product_id": productID})
}

func itemNotFound(productID, variantID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found").
		WithDetails(map[string]any{"product_id": productID, "variant_id": variantID})
}

func wrapInternal(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
