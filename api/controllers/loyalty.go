package controllers

import (
	"net/http"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	"github.com/angelmondragon/dailycart-backend/internal/loyalty"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

func LoyaltyAccount(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("loyalty"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.GetAccount(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}
