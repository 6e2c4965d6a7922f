package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles one traffic surface per actor, or per client IP on
// anonymous routes.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	limit  int64
}

func NewRateLimitPolicy(name string, window time.Duration, limit int64) RateLimitPolicy {
	return RateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		limit:  limit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p RateLimitPolicy) scope(r *http.Request) string {
	name := p.name
	if name == "" {
		name = "default"
	}
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return fmt.Sprintf("%s:user:%s", name, userID)
	}
	return fmt.Sprintf("%s:ip:%s", name, clientIP(r))
}

// RateLimit rejects requests beyond the policy's fixed window with RATE_LIMIT_EXCEEDED.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			allowed, count, err := store.FixedWindowAllow(ctx, policy.scope(r), policy.limit, policy.window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"policy":         policy.name,
						"attempts":       count,
						"limit":          policy.limit,
						"window_seconds": int(policy.window.Seconds()),
					})
					logg.Warn(logCtx, "rate_limit.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
