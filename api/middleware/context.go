package middleware

import (
	"context"

	"github.com/angelmondragon/dailycart-backend/pkg/auth"
)

type contextKey string

const ctxActor contextKey = "actor"

// WithActor injects the authenticated principal into the context.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext returns the principal set by Auth. ok is false on public routes.
func ActorFromContext(ctx context.Context) (auth.Actor, bool) {
	if ctx == nil {
		return auth.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(auth.Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.UserID.String()
}

func RoleFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return string(actor.Role)
}
