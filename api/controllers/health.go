package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	"github.com/angelmondragon/dailycart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency that can report its liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DailyCart-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each named dependency and fails on the first error.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DailyCart-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
					WithDetails(map[string]string{"dependency": name}))
				return
			}
			checks[name] = "ok"
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
