package webhooks

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/teevo/fulfilment-backend/api/responses"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/metrics"
	"github.com/teevo/fulfilment-backend/pkg/shippo"
)

const (
	shippoConsumer = "shippo"
	maxShippoBody  = 256 << 10
)

type CarrierEventHandler interface {
	HandleCarrierEvent(ctx context.Context, evt shippo.TrackEvent) error
}

// ShippoWebhook accepts track_updated deliveries. Shippo does not sign its
// webhooks, so the endpoint is addressed with a shared token query parameter.
func ShippoWebhook(svc CarrierEventHandler, token string, guard EventGuard, m *metrics.FulfilmentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}
		if !tokenMatches(token, r.URL.Query().Get("token")) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook token"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxShippoBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		evt, err := shippo.ParseTrackEvent(body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tracking event"))
			return
		}
		if evt.Data.Transaction == "" && evt.Data.TrackingNumber == "" {
			m.IncWebhook(shippoConsumer, metrics.WebhookDropped)
			if logg != nil {
				logg.Warn(ctx, "tracking event without transaction or tracking number")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		eventID := evt.EventID()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"shippo_event_id": eventID, "tracking_status": evt.Data.TrackingStatus.Status})
		}

		alreadyProcessed, err := guard.CheckAndMarkProcessed(ctx, shippoConsumer, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			m.IncWebhook(shippoConsumer, metrics.WebhookDuplicate)
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleCarrierEvent(ctx, evt); err != nil {
			if relErr := guard.Release(ctx, shippoConsumer, eventID); relErr != nil && logg != nil {
				logg.Error(ctx, "release shippo event mark", relErr)
			}
			m.IncWebhook(shippoConsumer, metrics.WebhookFailed)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		m.IncWebhook(shippoConsumer, metrics.WebhookProcessed)
		responses.WriteSuccess(w, nil)
	}
}

func tokenMatches(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
