package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the inventory ledger: the only writer of variant stock.
type Service interface {
	IsAvailable(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (*models.ProductVariant, error)
	AdjustStockTx(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int) (*models.ProductVariant, error)
	UpsertVariant(ctx context.Context, variant *models.ProductVariant) (*models.ProductVariant, error)
	GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	Restock(ctx context.Context, variantID uuid.UUID, qty int, actor auth.Actor) (*models.ProductVariant, error)
}

// InsufficientStockDetails is attached to INSUFFICIENT_STOCK errors.
type InsufficientStockDetails struct {
	VariantID uuid.UUID `json:"variant_id"`
	Available int       `json:"available"`
	Requested int       `json:"requested"`
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
}

// NewService wires the ledger.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, logg: logg}, nil
}

func (s *service) IsAvailable(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	variant, err := s.GetVariant(ctx, variantID)
	if err != nil {
		return false, err
	}
	return variant.Stock >= qty, nil
}

func (s *service) GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	return loadVariant(ctx, s.repo, variantID)
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"reason": "product_not_found", "product_id": productID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (*models.ProductVariant, error) {
	var out *models.ProductVariant
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		variant, err := s.AdjustStockTx(ctx, tx, variantID, delta)
		if err != nil {
			return err
		}
		out = variant
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) AdjustStockTx(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int) (*models.ProductVariant, error) {
	repo := s.repo.WithTx(tx)
	if delta == 0 {
		return loadVariant(ctx, repo, variantID)
	}

	affected, err := repo.AddStock(ctx, variantID, delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjust stock")
	}
	variant, err := loadVariant(ctx, repo, variantID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, insufficientStock(variantID, variant.Stock, -delta)
	}

	logCtx := s.logg.WithVariantID(ctx, variantID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"delta": delta, "stock": variant.Stock})
	s.logg.Info(logCtx, "stock adjusted")
	return variant, nil
}

func (s *service) UpsertVariant(ctx context.Context, variant *models.ProductVariant) (*models.ProductVariant, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindProduct(ctx, variant.ProductID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"reason": "product_not_found", "product_id": variant.ProductID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}

		creating := variant.ID == uuid.Nil
		if creating {
			variant.ID = uuid.New()
		}
		if variant.IsDefault {
			if err := repo.ClearDefault(ctx, variant.ProductID, variant.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear sibling defaults")
			}
		}

		var err error
		if creating {
			err = repo.CreateVariant(ctx, variant)
		} else {
			err = repo.SaveVariant(ctx, variant)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save variant")
		}

		siblings, err := repo.ListVariantsByProduct(ctx, variant.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list variants")
		}
		for _, v := range siblings {
			if v.IsDefault {
				return nil
			}
		}
		if len(siblings) > 0 {
			if err := repo.SetDefault(ctx, siblings[0].ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promote default variant")
			}
			if siblings[0].ID == variant.ID {
				variant.IsDefault = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

func (s *service) Restock(ctx context.Context, variantID uuid.UUID, qty int, actor auth.Actor) (*models.ProductVariant, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var out *models.ProductVariant
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		variant, err := s.AdjustStockTx(ctx, tx, variantID, qty)
		if err != nil {
			return err
		}
		out = variant
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryRestocked,
			AggregateType: enums.AggregateProductVariant,
			AggregateID:   variant.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.InventoryRestockedEvent{
				VariantID: variant.ID,
				ProductID: variant.ProductID,
				SKU:       variant.SKU,
				Quantity:  qty,
				Stock:     variant.Stock,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithVariantID(ctx, variantID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"quantity": qty, "actor": actor.Label()})
	s.logg.Info(logCtx, "variant restocked")
	return out, nil
}

func loadVariant(ctx context.Context, repo Repository, variantID uuid.UUID) (*models.ProductVariant, error) {
	variant, err := repo.FindVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
				WithDetails(map[string]any{"reason": "variant_not_found", "variant_id": variantID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
	}
	return variant, nil
}

func insufficientStock(variantID uuid.UUID, available, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(InsufficientStockDetails{VariantID: variantID, Available: available, Requested: requested})
}

// InsufficientStock builds the error callers return when a quantity check fails
// before any write happens.
func InsufficientStock(variantID uuid.UUID, available, requested int) error {
	return insufficientStock(variantID, available, requested)
}

func validateVariant(v *models.ProductVariant) error {
	if v == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant is required")
	}
	v.SKU = strings.TrimSpace(v.SKU)
	switch {
	case v.ProductID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	case v.SKU == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	case v.Stock < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	case v.SellingPrice.LessThan(decimal.Zero) || v.MRP.LessThan(decimal.Zero):
		return pkgerrors.New(pkgerrors.CodeValidation, "prices must not be negative")
	case v.SellingPrice.GreaterThan(v.MRP):
		return pkgerrors.New(pkgerrors.CodeValidation, "selling price must not exceed mrp")
	}
	return nil
}
