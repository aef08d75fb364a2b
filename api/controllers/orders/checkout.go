package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/teevo/fulfilment-backend/api/middleware"
	"github.com/teevo/fulfilment-backend/api/responses"
	"github.com/teevo/fulfilment-backend/api/validators"
	"github.com/teevo/fulfilment-backend/internal/payments"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
)

// CheckoutConfirmer creates the order from a completed checkout session.
type CheckoutConfirmer interface {
	ConfirmSession(ctx context.Context, buyerID uuid.UUID, sessionID string) (*payments.CreateResult, error)
}

type checkoutConfirmResponse struct {
	Order   OrderView `json:"order"`
	Created bool      `json:"created"`
}

// ConfirmCheckout is the buyer's fallback when the redirect beats the payment
// webhook. It answers 201 when this call created the order and 200 otherwise.
func ConfirmCheckout(svc CheckoutConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		buyerID := middleware.UserIDFromContext(r.Context())
		if buyerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}
		sessionID, err := validators.PathString(r, "sessionId", 255)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.ConfirmSession(r.Context(), buyerID, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, checkoutConfirmResponse{Order: NewOrderView(res.Order), Created: res.Created})
	}
}
