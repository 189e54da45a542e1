package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/srrfarms/storefront-api/api/controllers"
	"github.com/srrfarms/storefront-api/api/middleware"
	"github.com/srrfarms/storefront-api/internal/cart"
	"github.com/srrfarms/storefront-api/internal/checkout"
	"github.com/srrfarms/storefront-api/internal/orders"
	"github.com/srrfarms/storefront-api/internal/payments"
	"github.com/srrfarms/storefront-api/internal/products"
	"github.com/srrfarms/storefront-api/internal/users"
	"github.com/srrfarms/storefront-api/pkg/auth/session"
	"github.com/srrfarms/storefront-api/pkg/config"
	"github.com/srrfarms/storefront-api/pkg/logger"
	"github.com/srrfarms/storefront-api/pkg/metrics"
	redisclient "github.com/srrfarms/storefront-api/pkg/redis"
)

// jsonBodyLimit bounds buffered JSON bodies and the form fields around an upload.
const jsonBodyLimit = 1 << 20

type sessionManager interface {
	session.AccessSessionChecker
	session.Revoker
}

type profileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// Deps carries everything the router hands to controllers and middleware.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          controllers.Pinger
	RateLimiter    redisclient.RateLimiter
	Idempotency    redisclient.IdempotencyStore
	Sessions       sessionManager
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Products products.Service
	Cart     cart.Service
	Checkout checkout.Service
	Orders   orders.Service
	Payments payments.Service
	Profiles profileService
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}, logg))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	limit := middleware.RateLimit(middleware.RateLimitPolicy{
		Window: cfg.RateLimit.Window,
		Limit:  cfg.RateLimit.Limit,
	}, deps.RateLimiter, logg)
	authenticate := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	adminOnly := middleware.RequireAdmin(logg)
	idempotentCheckout := middleware.Idempotency(middleware.IdempotencyPolicy{
		TTL:          cfg.Idempotency.TTL,
		MaxBodyBytes: jsonBodyLimit,
	}, deps.Idempotency, logg)
	idempotentUPI := middleware.Idempotency(middleware.IdempotencyPolicy{
		TTL:          cfg.Idempotency.TTL,
		MaxBodyBytes: cfg.Uploads.MaxBytes() + jsonBodyLimit,
	}, deps.Idempotency, logg)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", controllers.ProductsList(deps.Products, logg))
		r.Get("/products/{productId}", controllers.ProductGet(deps.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(authenticate, limit)

			r.Route("/auth", func(r chi.Router) {
				r.Post("/logout", controllers.AuthLogout(deps.Sessions, deps.Profiles, logg))
				r.Get("/me", controllers.AuthMe(deps.Profiles, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(deps.Cart, logg))
				r.Delete("/", controllers.CartClear(deps.Cart, logg))
				r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
				r.Put("/items/{productId}", controllers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(deps.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrdersList(deps.Orders, logg))
				r.With(idempotentCheckout).Post("/", controllers.OrderPlace(deps.Checkout, logg))
				r.Get("/{orderId}", controllers.OrderGet(deps.Orders, logg))

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Get("/admin/all", controllers.AdminOrdersList(deps.Orders, logg))
					r.Get("/admin/stats", controllers.AdminOrderStats(deps.Orders, logg))
					r.Put("/{orderId}/status", controllers.AdminOrderUpdateStatus(deps.Orders, logg))
					r.Put("/{orderId}/payment", controllers.AdminOrderVerifyPayment(deps.Orders, logg))
				})
			})

			r.With(idempotentUPI).Post("/payments/create-upi-order", controllers.PaymentsCreateUPIOrder(deps.Payments, cfg.Uploads.MaxBytes(), logg))

			r.Route("/admin/products", func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", controllers.AdminProductsList(deps.Products, logg))
				r.Post("/", controllers.AdminProductCreate(deps.Products, logg))
				r.Patch("/{productId}", controllers.AdminProductUpdate(deps.Products, logg))
			})
		})
	})

	return r
}
