package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teevo/fulfilment-backend/api/controllers"
	ordercontrollers "github.com/teevo/fulfilment-backend/api/controllers/orders"
	webhookcontrollers "github.com/teevo/fulfilment-backend/api/controllers/webhooks"
	"github.com/teevo/fulfilment-backend/api/middleware"
	"github.com/teevo/fulfilment-backend/pkg/config"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/metrics"
	"github.com/teevo/fulfilment-backend/pkg/redis"
)

// Services groups the handlers' collaborators.
type Services struct {
	Orders         ordercontrollers.Reader
	Packaging      ordercontrollers.PackagingService
	Labels         ordercontrollers.LabelService
	Delivery       DeliveryService
	Checkout       ordercontrollers.CheckoutConfirmer
	StripeEvents   webhookcontrollers.StripeWebhookService
	StripeClient   webhookcontrollers.SigningClient
	WebhookGuard   webhookcontrollers.EventGuard
	Metrics        *metrics.FulfilmentMetrics
	MetricsHandler http.Handler
}

// DeliveryService serves both the buyer/seller routes and the carrier webhook.
type DeliveryService interface {
	ordercontrollers.DeliveryService
	webhookcontrollers.CarrierEventHandler
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger(redisClient)))
	})
	if svcs.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", svcs.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(svcs.StripeEvents, svcs.StripeClient, svcs.WebhookGuard, svcs.Metrics, logg))
			r.Post("/shippo", webhookcontrollers.ShippoWebhook(svcs.Delivery, cfg.Shippo.WebhookToken, svcs.WebhookGuard, svcs.Metrics, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotencyStore(redisClient), logg))

			r.Post("/checkout/sessions/{sessionId}/confirm", ordercontrollers.ConfirmCheckout(svcs.Checkout, logg))

			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(svcs.Orders, logg))
				r.Post("/packaging/choice", ordercontrollers.ChoosePackaging(svcs.Packaging, logg))
				r.Post("/packaging/photos", ordercontrollers.SubmitPhotos(svcs.Packaging, logg))
				r.Post("/packaging/verify", ordercontrollers.SellerVerifyPackaging(svcs.Packaging, logg))
				r.Post("/label", ordercontrollers.CreateLabel(svcs.Labels, logg))
				r.Post("/ship", ordercontrollers.MarkShipped(svcs.Delivery, logg))
				r.Post("/confirm-receipt", ordercontrollers.ConfirmReceipt(svcs.Delivery, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Use(middleware.Idempotency(idempotencyStore(redisClient), logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Post("/packaging/verify", ordercontrollers.AdminVerifyPackaging(svcs.Packaging, logg))
			r.Post("/packaging/reject", ordercontrollers.AdminRejectPackaging(svcs.Packaging, logg))
			r.Get("/events", ordercontrollers.AdminOrderEvents(svcs.Orders, logg))
		})
	})

	return r
}

// A nil *redis.Client must reach the handlers as a nil interface.
func redisPinger(c *redis.Client) controllers.Pinger {
	if c == nil {
		return nil
	}
	return c
}

func idempotencyStore(c *redis.Client) redis.IdempotencyStore {
	if c == nil {
		return nil
	}
	return c
}
