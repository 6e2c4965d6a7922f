package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/dailycart-backend/api/controllers"
	"github.com/angelmondragon/dailycart-backend/api/middleware"
	"github.com/angelmondragon/dailycart-backend/internal/cart"
	"github.com/angelmondragon/dailycart-backend/internal/checkout"
	"github.com/angelmondragon/dailycart-backend/internal/coupons"
	"github.com/angelmondragon/dailycart-backend/internal/inventory"
	"github.com/angelmondragon/dailycart-backend/internal/loyalty"
	"github.com/angelmondragon/dailycart-backend/internal/orders"
	"github.com/angelmondragon/dailycart-backend/internal/reorder"
	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/dailycart-backend/pkg/redis"
)

// RedisStore is the slice of pkg/redis the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Deps wires the services behind the HTTP surface.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        controllers.Pinger
	Redis     RedisStore
	Gatherer  prometheus.Gatherer
	Cart      cart.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Reorder   reorder.Service
	Coupons   coupons.Service
	Inventory inventory.Service
	Loyalty   loyalty.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var idempotencyStore pkgredis.IdempotencyStore
	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["postgres"] = deps.DB
	}
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		readiness["redis"] = deps.Redis
	}
	idempotent := middleware.Idempotency(idempotencyStore, logg)

	var limiter interface {
		FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	}
	if deps.Redis != nil {
		limiter = deps.Redis
	}
	couponPolicy := middleware.NewRateLimitPolicy("coupon_apply", cfg.RateLimit.CouponApplyWindow, cfg.RateLimit.CouponApplyLimit)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleCustomer))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.Cart, logg))
				r.Delete("/", controllers.CartClear(deps.Cart, logg))
				r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
				r.Patch("/items", controllers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items", controllers.CartRemoveItem(deps.Cart, logg))
				r.With(middleware.RateLimit(couponPolicy, limiter, logg)).Post("/coupon", controllers.CartApplyCoupon(deps.Cart, logg))
				r.Delete("/coupon", controllers.CartRemoveCoupon(deps.Cart, logg))
			})

			r.With(idempotent).Post("/checkout", controllers.Checkout(deps.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
				r.Get("/{orderId}/refund", controllers.OrderRefund(deps.Orders, logg))
				r.With(idempotent).Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
				r.With(idempotent).Post("/{orderId}/reorder", controllers.ReorderOrder(deps.Reorder, logg))
			})

			r.Get("/me/loyalty", controllers.LoyaltyAccount(deps.Loyalty, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleStaff, enums.RoleAdmin))

			r.Get("/orders", controllers.AdminListOrders(deps.Orders, logg))
			r.With(idempotent).Post("/orders/{orderId}/status", controllers.AdminTransitionOrder(deps.Orders, logg))
			r.With(idempotent).Post("/orders/{orderId}/assign", controllers.AdminAssignPartner(deps.Orders, logg))
			r.With(idempotent).Post("/inventory/{variantId}/restock", controllers.AdminRestock(deps.Inventory, logg))

			r.Post("/coupons", controllers.AdminCreateCoupon(deps.Coupons, logg))
			r.Get("/coupons", controllers.AdminListCoupons(deps.Coupons, logg))
			r.Post("/coupons/{code}/deactivate", controllers.AdminDeactivateCoupon(deps.Coupons, logg))
		})

		r.Route("/delivery", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleDeliveryPartner, enums.RoleStaff, enums.RoleAdmin))
			r.With(idempotent).Post("/orders/{orderId}/deliver", controllers.DeliverOrder(deps.Orders, logg))
		})
	})

	return r
}
