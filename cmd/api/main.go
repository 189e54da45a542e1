package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/srrfarms/storefront-api/api/routes"
	"github.com/srrfarms/storefront-api/internal/cart"
	"github.com/srrfarms/storefront-api/internal/checkout"
	"github.com/srrfarms/storefront-api/internal/orders"
	"github.com/srrfarms/storefront-api/internal/payments"
	"github.com/srrfarms/storefront-api/internal/products"
	"github.com/srrfarms/storefront-api/internal/users"
	"github.com/srrfarms/storefront-api/pkg/auth/session"
	pkgcheckout "github.com/srrfarms/storefront-api/pkg/checkout"
	"github.com/srrfarms/storefront-api/pkg/config"
	"github.com/srrfarms/storefront-api/pkg/db"
	"github.com/srrfarms/storefront-api/pkg/logger"
	"github.com/srrfarms/storefront-api/pkg/metrics"
	"github.com/srrfarms/storefront-api/pkg/migrate"
	"github.com/srrfarms/storefront-api/pkg/redis"
	"github.com/srrfarms/storefront-api/pkg/storage/gcs"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxProfileTTL     = 15 * time.Minute
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
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, gcsClient.Close()) }()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	conn := dbClient.DB()
	productRepo := products.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	userRepo := users.NewRepository(conn)

	productService, err := products.NewService(productRepo)
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(cartRepo, productRepo, dbClient, redisClient, cfg.Checkout.LockTTL)
	if err != nil {
		return err
	}
	orderService, err := orders.NewService(orderRepo, dbClient)
	if err != nil {
		return err
	}
	checkoutService, err := checkout.NewService(checkout.Config{
		Pricing: pkgcheckout.Pricing{
			ShippingFee: cfg.Checkout.ShippingFee,
			TaxRate:     cfg.Checkout.Tax(),
		},
		LockTTL:             cfg.Checkout.LockTTL,
		OrderNumberAttempts: cfg.Checkout.OrderNumberAttempts,
	}, checkout.Deps{
		Tx:       dbClient,
		Users:    userRepo,
		Carts:    cartRepo,
		Products: productRepo,
		Orders:   orderRepo,
		Locker:   redisClient,
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	paymentService, err := payments.NewService(payments.Config{
		MaxBytes:    cfg.Uploads.MaxBytes(),
		ProofPrefix: cfg.Uploads.ProofPrefix,
	}, gcsClient, checkoutService, logg)
	if err != nil {
		return err
	}
	profileService, err := users.NewProfileService(userRepo, redisClient, profileTTL(cfg.JWT), logg)
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		RateLimiter:    redisClient,
		Idempotency:    redisClient,
		Sessions:       sessionManager,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Products:       productService,
		Cart:           cartService,
		Checkout:       checkoutService,
		Orders:         orderService,
		Payments:       paymentService,
		Profiles:       profileService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": server.Addr,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// profileTTL keeps cached profiles from outliving the tokens that read them.
func profileTTL(cfg config.JWTConfig) time.Duration {
	ttl := cfg.AccessTTL()
	if ttl <= 0 || ttl > maxProfileTTL {
		return maxProfileTTL
	}
	return ttl
}
