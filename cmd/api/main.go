package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/isaacklow/supermart-backend/api/routes"
	"github.com/isaacklow/supermart-backend/internal/analytics"
	"github.com/isaacklow/supermart-backend/internal/auth"
	"github.com/isaacklow/supermart-backend/internal/cart"
	"github.com/isaacklow/supermart-backend/internal/catalog"
	"github.com/isaacklow/supermart-backend/internal/checkout"
	"github.com/isaacklow/supermart-backend/internal/orders"
	"github.com/isaacklow/supermart-backend/internal/payments"
	"github.com/isaacklow/supermart-backend/internal/payments/netsqr"
	"github.com/isaacklow/supermart-backend/internal/payments/paypal"
	"github.com/isaacklow/supermart-backend/internal/payments/stripecard"
	"github.com/isaacklow/supermart-backend/internal/users"
	"github.com/isaacklow/supermart-backend/pkg/auth/session"
	"github.com/isaacklow/supermart-backend/pkg/config"
	"github.com/isaacklow/supermart-backend/pkg/db"
	"github.com/isaacklow/supermart-backend/pkg/logger"
	"github.com/isaacklow/supermart-backend/pkg/metrics"
	"github.com/isaacklow/supermart-backend/pkg/migrate"
	"github.com/isaacklow/supermart-backend/pkg/outbox"
	"github.com/isaacklow/supermart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	userService, err := users.NewService(userRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalogRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orderRepo, dbClient, catalogRepo, userRepo, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	analyticsService, err := analytics.NewService(userRepo, catalogRepo, orderRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics service", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(promRegistry)

	// Gateways come back nil when their credentials are absent. Only concrete
	// non-nil gateways go into the registry; a typed nil inside the interface
	// would otherwise register as configured.
	var gateways []payments.Gateway

	stripeGateway, err := stripecard.New(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe gateway", err)
		os.Exit(1)
	}
	if stripeGateway != nil {
		gateways = append(gateways, stripeGateway)
	}

	paypalGateway, err := paypal.New(context.Background(), cfg.PayPal, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paypal gateway", err)
		os.Exit(1)
	}
	if paypalGateway != nil {
		gateways = append(gateways, paypalGateway)
	}

	netsGateway, err := netsqr.New(context.Background(), cfg.NETS, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create nets gateway", err)
		os.Exit(1)
	}
	if netsGateway != nil {
		gateways = append(gateways, netsGateway)
	}

	paymentRegistry := payments.NewRegistry(gateways...)

	sessionStore, err := checkout.NewSessionStore(redisClient, cfg.Checkout.SessionTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout session store", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:          dbClient,
		CartRepo:    cartRepo,
		CatalogRepo: catalogRepo,
		OrdersRepo:  orderRepo,
		Gateways:    paymentRegistry,
		Sessions:    sessionStore,
		Locker:      redisClient,
		Outbox:      outboxService,
		Metrics:     checkoutMetrics,
		Logger:      logg,
		LockTTL:     cfg.Checkout.LockTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			userService,
			catalogService,
			cartService,
			checkoutService,
			orderService,
			analyticsService,
			paymentRegistry,
			netsGateway,
			checkoutMetrics,
			promRegistry,
		),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received, draining connections")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server stopped")
	}
}
