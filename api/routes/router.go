package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/isaacklow/supermart-backend/api/controllers"
	"github.com/isaacklow/supermart-backend/api/middleware"
	"github.com/isaacklow/supermart-backend/internal/analytics"
	"github.com/isaacklow/supermart-backend/internal/auth"
	"github.com/isaacklow/supermart-backend/internal/cart"
	"github.com/isaacklow/supermart-backend/internal/catalog"
	checkoutsvc "github.com/isaacklow/supermart-backend/internal/checkout"
	"github.com/isaacklow/supermart-backend/internal/orders"
	"github.com/isaacklow/supermart-backend/internal/payments"
	"github.com/isaacklow/supermart-backend/internal/payments/netsqr"
	"github.com/isaacklow/supermart-backend/internal/users"
	"github.com/isaacklow/supermart-backend/pkg/auth/session"
	"github.com/isaacklow/supermart-backend/pkg/config"
	"github.com/isaacklow/supermart-backend/pkg/db"
	"github.com/isaacklow/supermart-backend/pkg/enums"
	"github.com/isaacklow/supermart-backend/pkg/logger"
	"github.com/isaacklow/supermart-backend/pkg/metrics"
	"github.com/isaacklow/supermart-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionChecker session.AccessSessionChecker,
	authService auth.Service,
	userService users.Service,
	catalogService catalog.Service,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	orderService orders.Service,
	analyticsService analytics.Service,
	paymentRegistry *payments.Registry,
	netsGateway *netsqr.Gateway,
	checkoutMetrics *metrics.CheckoutMetrics,
	promRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.RateLimitPolicy{Name: "login", Window: time.Minute, Limit: 10}
	registerPolicy := middleware.RateLimitPolicy{Name: "register", Window: time.Minute, Limit: 5}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
		r.With(middleware.RateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))

		r.Post("/auth/logout", controllers.AuthLogout(authService, logg))

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", controllers.ProfileGet(userService, logg))
			r.Patch("/", controllers.ProfileUpdate(userService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(catalogService, logg))
			r.Get("/featured", controllers.ProductFeatured(catalogService, logg))
			r.Get("/{productId}", controllers.ProductDetail(catalogService, logg))
		})
		r.Get("/categories", controllers.CategoryList(catalogService, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Post("/", controllers.CartAdd(cartService, logg))
			r.Patch("/{itemId}", controllers.CartUpdateQuantity(cartService, logg))
			r.Delete("/{itemId}", controllers.CartRemove(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/initiate", controllers.CheckoutInitiate(checkoutService, logg))
			r.Post("/finalize", controllers.CheckoutFinalize(checkoutService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/methods", controllers.PaymentMethods(paymentRegistry, logg))
			r.Get("/nets/status/{ref}", controllers.NETSPaymentStatus(netsGateway, checkoutMetrics, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(orderService, logg))
			r.Get("/{orderId}", controllers.OrderInvoice(orderService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminUserList(userService, logg))
			r.Patch("/{userId}/role", controllers.AdminUserSetRole(userService, logg))
			r.Delete("/{userId}", controllers.AdminUserDelete(userService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(orderService, logg))
			r.Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(orderService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminProductCreate(catalogService, logg))
			r.Patch("/{productId}", controllers.AdminProductUpdate(catalogService, logg))
			r.Delete("/{productId}", controllers.AdminProductDelete(catalogService, logg))
			r.Post("/restock", controllers.AdminBulkRestock(catalogService, logg))
			r.Get("/low-stock", controllers.AdminLowStock(catalogService, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", controllers.AdminCategoryCreate(catalogService, logg))
			r.Delete("/{categoryId}", controllers.AdminCategoryDelete(catalogService, logg))
		})

		r.Get("/dashboard", controllers.AdminDashboard(analyticsService, logg))
		r.Get("/analytics", controllers.AdminAnalytics(analyticsService, logg))
	})

	return r
}
