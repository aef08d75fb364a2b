package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/teevo/fulfilment-backend/api/responses"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/metrics"
)

const (
	stripeConsumer = "stripe"
	maxStripeBody  = 1 << 20
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// EventGuard remembers which provider events were already handled.
type EventGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Release(ctx context.Context, consumer, eventID string) error
}

// SigningClient exposes the webhook signing secret.
type SigningClient interface {
	SigningSecret() string
}

// StripeWebhook verifies and de-duplicates Stripe deliveries before handing
// them to the payment service. Retryable failures release the event so Stripe
// redelivers it. Permanent failures are acknowledged and logged.
func StripeWebhook(svc StripeWebhookService, client SigningClient, guard EventGuard, m *metrics.FulfilmentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxStripeBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
		}

		alreadyProcessed, err := guard.CheckAndMarkProcessed(ctx, stripeConsumer, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			m.IncWebhook(stripeConsumer, metrics.WebhookDuplicate)
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if !pkgerrors.Retryable(err) {
				m.IncWebhook(stripeConsumer, metrics.WebhookDropped)
				if logg != nil {
					logg.Error(ctx, "stripe event rejected permanently", err)
				}
				responses.WriteSuccess(w, nil)
				return
			}
			if relErr := guard.Release(ctx, stripeConsumer, event.ID); relErr != nil && logg != nil {
				logg.Error(ctx, "release stripe event mark", relErr)
			}
			m.IncWebhook(stripeConsumer, metrics.WebhookFailed)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		m.IncWebhook(stripeConsumer, metrics.WebhookProcessed)
		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		responses.WriteSuccess(w, nil)
	}
}
