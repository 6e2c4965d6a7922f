package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/api/validators"
	orderssvc "github.com/angelmondragon/dailycart-backend/internal/orders"
	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

type deliverOrderRequest struct {
	OTP string `json:"otp" validate:"omitempty,len=6,numeric"`
}

// DeliverOrder marks an out-for-delivery order delivered. Cash orders need the
// OTP the customer received at checkout.
func DeliverOrder(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID uuid.UUID, actor auth.Actor) (any, error) {
		var payload deliverOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.ConfirmDelivery(r.Context(), orderID, payload.OTP, actor)
	})
}
