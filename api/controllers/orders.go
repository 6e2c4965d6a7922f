package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	"github.com/angelmondragon/dailycart-backend/api/validators"
	orderssvc "github.com/angelmondragon/dailycart-backend/internal/orders"
	"github.com/angelmondragon/dailycart-backend/internal/reorder"
	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

const maxNoteLength = 500

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ListOrders returns the caller's order history, newest first.
func ListOrders(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("orders"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForUser(r.Context(), actor.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func OrderDetail(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID uuid.UUID, actor auth.Actor) (any, error) {
		return svc.Get(r.Context(), orderID, actor)
	})
}

// OrderRefund reports what a cancellation refunded, or would refund now.
func OrderRefund(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID uuid.UUID, actor auth.Actor) (any, error) {
		return svc.RefundAmount(r.Context(), orderID, actor)
	})
}

func CancelOrder(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID uuid.UUID, actor auth.Actor) (any, error) {
		var payload cancelOrderRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				return nil, err
			}
		}
		return svc.Cancel(r.Context(), orderID, validators.SanitizeString(payload.Reason, maxNoteLength), actor)
	})
}

// ReorderOrder puts the lines of a past order back in the caller's cart and
// reports the ones that could not be added.
func ReorderOrder(svc reorder.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("reorder"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		result, err := svc.Reorder(ctx, orderID, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type orderAction func(r *http.Request, orderID uuid.UUID, actor auth.Actor) (any, error)

func orderHandler(svc orderssvc.Service, logg *logger.Logger, status int, action orderAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("orders"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		out, err := action(r.WithContext(ctx), orderID, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, out)
	}
}
