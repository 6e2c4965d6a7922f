package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/dailycart-backend/pkg/redis"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	replayHeader         = "Idempotent-Replay"
	maxIdempotencyKeyLen = 128

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can hold its key.
	inFlightTTL = 2 * time.Minute
)

type idempotentRoute struct {
	method  string
	pattern string
	prefix  bool
	ttl     time.Duration
}

func (r idempotentRoute) matches(method, pattern string) bool {
	if r.method != method {
		return false
	}
	if r.prefix {
		return strings.HasPrefix(pattern, r.pattern)
	}
	return r.pattern == pattern
}

// Checkout, cancellation and the doorstep handoff keep their keys for a week;
// reorders and back-office writes for a day.
var idempotentRoutes = []idempotentRoute{
	{method: http.MethodPost, pattern: "/api/v1/checkout", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/orders/{orderId}/cancel", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/orders/{orderId}/reorder", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/delivery/orders/{orderId}/deliver", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/admin/orders/", prefix: true, ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/admin/inventory/", prefix: true, ttl: defaultIdempotencyTTL},
}

// storedResponse is what Redis holds under an idempotency key. InFlight marks
// a reservation taken before the handler ran.
type storedResponse struct {
	InFlight    bool   `json:"in_flight,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes the routes above safe to retry. The first request under a
// key reserves it, runs, and stores its response; later requests with the same
// body replay that response, and requests arriving while the first is still
// running get a conflict. 5xx responses release the key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxIdempotencyKeyLen:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			fingerprint := fingerprintOf(body)
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			reservation, err := json.Marshal(storedResponse{InFlight: true, Fingerprint: fingerprint})
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode reservation"))
				return
			}
			reserved, err := store.SetNX(ctx, key, string(reservation), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayExisting(w, r, store, logg, key, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}

			final, err := json.Marshal(storedResponse{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err == nil {
				err = store.Set(ctx, key, string(final), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency response", err)
			}
		})
	}
}

func replayExisting(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, logg *logger.Logger, key, fingerprint string) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The holder released the key between our SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this Idempotency-Key was retried too quickly"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if stored.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if stored.InFlight {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this Idempotency-Key is still in progress"))
		return
	}

	w.Header().Set(replayHeader, "true")
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		r.Body = http.NoBody
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// idempotencyScope keys on the caller and concrete path so one customer's key
// can never replay another customer's order.
func idempotencyScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(bytes.TrimSpace(body))
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if route.matches(method, pattern) {
			return route.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
