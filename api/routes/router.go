package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/delivery"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Cache is the Redis surface used by the HTTP layer. *redis.Client
// satisfies it.
type Cache interface {
	pinger
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       pinger
	Cache    Cache
	Sessions session.AccessSessionChecker

	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Auth      auth.Service
	Cart      cart.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Delivery  delivery.Service
	Vouchers  vouchers.Service
	Users     users.Service
	Addresses address.Service
	Catalog   catalog.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.HTTPMetrics),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginIdentityLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		0,
	)
	idempotent := middleware.Idempotency(d.Cache, cfg.Idempotency, logg)
	authenticate := middleware.Auth(cfg.JWT, d.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "db", Pinger: d.DB},
			controllers.ReadinessCheck{Name: "redis", Pinger: d.Cache},
		))
	})
	if cfg.Metrics.Enabled && d.MetricsHandler != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, d.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, d.Cache, logg), idempotent).
				Post("/register", controllers.AuthRegister(d.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, d.Cache, logg)).
				Post("/login", controllers.AuthLogin(d.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, d.Cache, logg)).
				Post("/worker-login", controllers.AuthWorkerLogin(d.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
			r.With(authenticate).Post("/logout", controllers.AuthLogout(d.Auth, logg))
		})

		// Public catalog.
		r.Get("/products", controllers.ListProducts(d.Catalog, logg))
		r.Get("/products/{productId}", controllers.GetProduct(d.Catalog, logg))
		r.Get("/categories", controllers.ListTerms(d.Catalog, catalog.KindCategory, logg))
		r.Get("/brands", controllers.ListTerms(d.Catalog, catalog.KindBrand, logg))
		r.Get("/tags", controllers.ListTerms(d.Catalog, catalog.KindTag, logg))

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireRole(logg, enums.UserRoleCustomer))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(d.Cart, logg))
				r.Delete("/", controllers.CartEmpty(d.Cart, logg))
				r.Post("/items", controllers.CartAddItem(d.Cart, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(d.Cart, logg))
				r.Post("/lines/{cartItemId}/increment", controllers.CartIncrement(d.Cart, logg))
				r.Post("/lines/{cartItemId}/decrement", controllers.CartDecrement(d.Cart, logg))
			})
			r.With(idempotent).Post("/checkout", controllers.Checkout(d.Checkout, logg))
			r.Get("/orders", controllers.MyOrders(d.Orders, logg))
			r.Get("/orders/{orderId}", controllers.MyOrder(d.Orders, logg))

			r.Route("/me", func(r chi.Router) {
				r.Get("/", controllers.Me(d.Users, logg))
				r.Get("/wishlist", controllers.MyWishlist(d.Users, logg))
				r.Post("/wishlist", controllers.AddToWishlist(d.Users, logg))
				r.Delete("/wishlist/{productId}", controllers.RemoveFromWishlist(d.Users, logg))
				r.Get("/vouchers", controllers.MyVouchers(d.Users, logg))
				r.Post("/vouchers", controllers.ClaimVoucher(d.Users, logg))
				r.Delete("/vouchers/{voucherId}", controllers.DropVoucher(d.Users, logg))
				r.Get("/addresses", controllers.MyAddresses(d.Addresses, logg))
				r.Post("/addresses", controllers.CreateAddress(d.Addresses, logg))
				r.Delete("/addresses/{addressId}", controllers.DeleteAddress(d.Addresses, logg))
			})
		})

		r.Route("/delivery", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireRole(logg, enums.UserRoleDelivery, enums.UserRoleStock))
			r.Get("/orders", controllers.DeliveryOrders(d.Delivery, logg))
			r.Get("/orders/current", controllers.DeliveryCurrentOrders(d.Delivery, logg))
			r.Post("/orders/{orderId}/status", controllers.DeliveryAdvanceOrder(d.Delivery, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrders(d.Orders, logg))
				r.Get("/delivered", controllers.AdminDeliveredOrders(d.Orders, logg))
				r.Get("/pending", controllers.AdminPendingOrders(d.Orders, logg))
				r.Get("/status/{status}", controllers.AdminOrdersByStatus(d.Orders, logg))
				r.Get("/{orderId}", controllers.AdminGetOrder(d.Orders, logg))
				r.Patch("/{orderId}", controllers.AdminUpdateOrder(d.Orders, logg))
				r.Delete("/{orderId}", controllers.AdminDeleteOrder(d.Orders, logg))
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/stats", controllers.AdminUserStats(d.Users, logg))
				r.Get("/customers", controllers.AdminListCustomers(d.Users, logg))
				r.Get("/by-phone/{phone}", controllers.AdminUserByPhone(d.Users, logg))
				r.Get("/{userId}", controllers.AdminGetUser(d.Users, logg))
				r.Get("/{userId}/orders", controllers.AdminUserOrders(d.Orders, logg))
			})

			r.Route("/workers", func(r chi.Router) {
				r.With(idempotent).Post("/", controllers.AdminCreateWorker(d.Delivery, logg))
				r.Get("/", controllers.AdminListWorkers(d.Delivery, logg))
				r.Get("/{workerId}", controllers.AdminGetWorker(d.Delivery, logg))
				r.Get("/{workerId}/orders", controllers.AdminWorkerOrders(d.Delivery, logg))
				r.Delete("/{workerId}", controllers.AdminDeleteWorker(d.Delivery, logg))
			})

			r.Route("/vouchers", func(r chi.Router) {
				r.With(idempotent).Post("/", controllers.AdminCreateVoucher(d.Vouchers, logg))
				r.Get("/", controllers.AdminListVouchers(d.Vouchers, logg))
				r.Get("/{voucherId}", controllers.AdminGetVoucher(d.Vouchers, logg))
				r.Patch("/{voucherId}", controllers.AdminUpdateVoucher(d.Vouchers, logg))
				r.Delete("/{voucherId}", controllers.AdminDeleteVoucher(d.Vouchers, logg))
			})

			r.Route("/products", func(r chi.Router) {
				r.Post("/", controllers.AdminCreateProduct(d.Catalog, logg))
				r.Get("/top-selling", controllers.AdminTopSellingProducts(d.Catalog, logg))
				r.Patch("/{productId}", controllers.AdminUpdateProduct(d.Catalog, logg))
				r.Delete("/{productId}", controllers.AdminDeleteProduct(d.Catalog, logg))
			})
			mountTerms(r, "/categories", catalog.KindCategory, d.Catalog, logg)
			mountTerms(r, "/brands", catalog.KindBrand, d.Catalog, logg)
			mountTerms(r, "/tags", catalog.KindTag, d.Catalog, logg)
		})
	})

	return r
}

func mountTerms(r chi.Router, path string, kind catalog.TermKind, svc catalog.Service, logg *logger.Logger) {
	r.Route(path, func(r chi.Router) {
		r.Post("/", controllers.AdminCreateTerm(svc, kind, logg))
		r.Get("/top-selling", controllers.AdminTopSellingTerms(svc, kind, logg))
		r.Delete("/{termId}", controllers.AdminDeleteTerm(svc, kind, logg))
	})
}
