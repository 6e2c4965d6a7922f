package controllers

import (
	"net/http"

	"github.com/angelmondragon/dailycart-backend/api/middleware"
	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
)

func requireActor(r *http.Request) (auth.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
