package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	"github.com/angelmondragon/dailycart-backend/api/validators"
	cartsvc "github.com/angelmondragon/dailycart-backend/internal/cart"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

type cartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=0"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

// CartFetch returns the caller's priced cart.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		return svc.Get(r.Context(), userID)
	})
}

// CartAddItem adds quantity of a variant, merging with an existing line.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddItem(r.Context(), userID, payload.ProductID, payload.VariantID, payload.Quantity)
	})
}

// CartUpdateItem sets a line's quantity; zero removes it.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.UpdateQuantity(r.Context(), userID, payload.ProductID, payload.VariantID, payload.Quantity)
	})
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		productID, err := validators.ParseQueryUUID(r, "product_id")
		if err != nil {
			return nil, err
		}
		variantID, err := validators.ParseQueryUUID(r, "variant_id")
		if err != nil {
			return nil, err
		}
		return svc.RemoveItem(r.Context(), userID, productID, variantID)
	})
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		return svc.Clear(r.Context(), userID)
	})
}

func CartApplyCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		var payload applyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.ApplyCoupon(r.Context(), userID, payload.Code)
	})
}

func CartRemoveCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error) {
		return svc.RemoveCoupon(r.Context(), userID)
	})
}

type cartAction func(r *http.Request, userID uuid.UUID) (*cartsvc.CartView, error)

func cartHandler(svc cartsvc.Service, logg *logger.Logger, action cartAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("cart"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := action(r, actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
