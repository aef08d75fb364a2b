package orders

import (
	"net/http"

	"github.com/teevo/fulfilment-backend/api/responses"
	"github.com/teevo/fulfilment-backend/api/validators"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
)

func AdminVerifyPackaging(svc PackagingService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("packaging service unavailable", logg)
	}
	return runAction(svc.AdminVerify, http.StatusOK, logg)
}

// AdminRejectPackaging rejects the submitted photos with notes for the seller.
func AdminRejectPackaging(svc PackagingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "packaging service unavailable"))
			return
		}
		actor, orderID, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req rejectPackagingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.AdminReject(r.Context(), actor, orderID, req.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderView(order))
	}
}

// AdminOrderEvents returns the transition history, oldest first.
func AdminOrderEvents(svc Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		actor, orderID, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.History(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewEventViews(events))
	}
}
