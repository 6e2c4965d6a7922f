package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	"github.com/angelmondragon/dailycart-backend/api/validators"
	orderssvc "github.com/angelmondragon/dailycart-backend/internal/orders"
	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

type assignPartnerRequest struct {
	PartnerID uuid.UUID `json:"partner_id" validate:"required"`
}

// AdminListOrders lists orders for the back office, optionally by ?status=.
func AdminListOrders(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("orders"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.OrderStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := parseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			status = &parsed
		}

		page, err := svc.ListByStatus(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminTransitionOrder(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID uuid.UUID, actor auth.Actor) (any, error) {
		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		target, err := parseOrderStatus(payload.Status)
		if err != nil {
			return nil, err
		}
		return svc.Transition(r.Context(), orderID, target, validators.SanitizeString(payload.Note, maxNoteLength), actor)
	})
}

func AdminAssignPartner(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID uuid.UUID, actor auth.Actor) (any, error) {
		var payload assignPartnerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AssignDeliveryPartner(r.Context(), orderID, payload.PartnerID, actor)
	})
}

func parseOrderStatus(raw string) (enums.OrderStatus, error) {
	status, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
			WithDetails(map[string]any{"status": raw, "allowed": enums.OrderStatuses()})
	}
	return status, nil
}
