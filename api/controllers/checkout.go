package controllers

import (
	"net/http"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	"github.com/angelmondragon/dailycart-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/dailycart-backend/internal/checkout"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

type checkoutRequest struct {
	PaymentMethod    string  `json:"payment_method" validate:"required"`
	DeliveryAddress  string  `json:"delivery_address" validate:"required,max=500"`
	ContactPhone     string  `json:"contact_phone" validate:"required,max=20"`
	PaymentReference *string `json:"payment_reference,omitempty" validate:"omitempty,max=128"`
}

// Checkout converts the caller's cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("checkout"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), actor.UserID, checkoutsvc.Input{
			PaymentMethod:    payload.PaymentMethod,
			DeliveryAddress:  payload.DeliveryAddress,
			ContactPhone:     payload.ContactPhone,
			PaymentReference: payload.PaymentReference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
