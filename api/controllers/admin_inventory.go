package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	"github.com/angelmondragon/dailycart-backend/api/validators"
	"github.com/angelmondragon/dailycart-backend/internal/inventory"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=100000"`
}

type variantStockResponse struct {
	VariantID uuid.UUID `json:"variant_id"`
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Label     string    `json:"label"`
	Stock     int       `json:"stock"`
}

func newVariantStockResponse(v *models.ProductVariant) variantStockResponse {
	return variantStockResponse{
		VariantID: v.ID,
		ProductID: v.ProductID,
		SKU:       v.SKU,
		Label:     v.Label,
		Stock:     v.Stock,
	}
}

// AdminRestock adds received units to a variant.
func AdminRestock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("inventory"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := validators.ParseURLUUID(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		variant, err := svc.Restock(r.Context(), variantID, payload.Quantity, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newVariantStockResponse(variant))
	}
}
