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

	"github.com/teevo/fulfilment-backend/api/routes"
	"github.com/teevo/fulfilment-backend/internal/delivery"
	"github.com/teevo/fulfilment-backend/internal/listings"
	"github.com/teevo/fulfilment-backend/internal/notifications"
	"github.com/teevo/fulfilment-backend/internal/orders"
	"github.com/teevo/fulfilment-backend/internal/packaging"
	"github.com/teevo/fulfilment-backend/internal/payments"
	"github.com/teevo/fulfilment-backend/internal/shipping"
	"github.com/teevo/fulfilment-backend/internal/users"
	"github.com/teevo/fulfilment-backend/pkg/config"
	"github.com/teevo/fulfilment-backend/pkg/db"
	"github.com/teevo/fulfilment-backend/pkg/instance"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/metrics"
	"github.com/teevo/fulfilment-backend/pkg/migrate"
	"github.com/teevo/fulfilment-backend/pkg/outbox"
	"github.com/teevo/fulfilment-backend/pkg/outbox/idempotency"
	"github.com/teevo/fulfilment-backend/pkg/redis"
	"github.com/teevo/fulfilment-backend/pkg/sendgrid"
	"github.com/teevo/fulfilment-backend/pkg/shippo"
	stripeclient "github.com/teevo/fulfilment-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripeclient.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe", err)
	shippoClient, err := shippo.NewClient(cfg.Shippo)
	requireResource(ctx, logg, "shippo", err)
	sender, err := sendgrid.NewSender(cfg.Sendgrid, logg)
	requireResource(ctx, logg, "sendgrid", err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	fulfilmentMetrics := metrics.NewFulfilmentMetrics(reg)

	gormDB := dbClient.DB()
	orderRepo := orders.NewRepository(gormDB)
	listingRepo := listings.NewRepository(gormDB)
	directory, err := users.NewDirectory(users.NewRepository(gormDB))
	requireResource(ctx, logg, "user directory", err)
	history := outbox.NewService(outbox.NewRepository(gormDB), logg)

	engine, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		TX:       dbClient,
		History:  history,
		Metrics:  fulfilmentMetrics,
		Logger:   logg,
		Attempts: cfg.Fulfilment.TransitionAttempts,
	})
	requireResource(ctx, logg, "order engine", err)

	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Repo:    notifications.NewRepository(gormDB),
		Sender:  sender,
		Metrics: fulfilmentMetrics,
		Logger:  logg,
	})
	requireResource(ctx, logg, "notification dispatcher", err)
	notifier, err := notifications.NewOrderNotifier(notifications.OrderNotifierParams{
		Dispatcher: dispatcher,
		Contacts:   directory,
		Titles:     listingRepo,
		AdminEmail: cfg.Fulfilment.AdminNotifyEmail,
		Logger:     logg,
	})
	requireResource(ctx, logg, "order notifier", err)

	paymentService, err := payments.NewService(payments.ServiceParams{
		Orders:   orderRepo,
		Engine:   engine,
		Listings: listingRepo,
		Profiles: directory,
		Notifier: notifier,
		History:  history,
		TX:       dbClient,
		Sessions: stripeclient.NewCheckoutSessions(stripeClient),
		Logger:   logg,
	})
	requireResource(ctx, logg, "payment service", err)

	packagingService, err := packaging.NewService(engine, notifier, logg)
	requireResource(ctx, logg, "packaging service", err)

	shippingService, err := shipping.NewService(shipping.ServiceParams{
		Engine:          engine,
		Provider:        shippoClient,
		Origins:         directory,
		Listings:        listingRepo,
		Locks:           redisClient,
		AllowedServices: cfg.Shippo.AllowedServices,
		Metrics:         fulfilmentMetrics,
		Logger:          logg,
	})
	requireResource(ctx, logg, "shipping service", err)

	deliveryService, err := delivery.NewService(delivery.ServiceParams{
		Engine:   engine,
		Orders:   orderRepo,
		Notifier: notifier,
		Logger:   logg,
	})
	requireResource(ctx, logg, "delivery service", err)

	webhookGuard, err := idempotency.NewManager(redisClient, cfg.Fulfilment.WebhookIdempotencyTTL)
	requireResource(ctx, logg, "webhook idempotency", err)

	handler := routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
		Orders:         engine,
		Packaging:      packagingService,
		Labels:         shippingService,
		Delivery:       deliveryService,
		Checkout:       paymentService,
		StripeEvents:   paymentService,
		StripeClient:   stripeClient,
		WebhookGuard:   webhookGuard,
		Metrics:        fulfilmentMetrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.GetID(),
		"stripe_env": stripeClient.Environment(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to bootstrap "+resource, err)
	os.Exit(1)
}
