package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/teevo/fulfilment-backend/api/middleware"
	"github.com/teevo/fulfilment-backend/api/responses"
	"github.com/teevo/fulfilment-backend/api/validators"
	internalorders "github.com/teevo/fulfilment-backend/internal/orders"
	"github.com/teevo/fulfilment-backend/internal/packaging"
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
)

// Reader serves order reads scoped to the caller.
type Reader interface {
	Get(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*models.Order, error)
	History(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) ([]models.OrderEvent, error)
}

// PackagingService runs the packaging sub-flow.
type PackagingService interface {
	ChoosePackaging(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, input packaging.ChoiceInput) (*models.Order, error)
	SubmitPhotos(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, paths []string) (*models.Order, error)
	SellerVerify(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*models.Order, error)
	AdminVerify(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*models.Order, error)
	AdminReject(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, notes string) (*models.Order, error)
}

// LabelService buys shipping labels.
type LabelService interface {
	CreateLabel(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*models.Order, error)
}

// DeliveryService records manual shipping and buyer receipt.
type DeliveryService interface {
	MarkShipped(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*models.Order, error)
	ConfirmReceipt(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*models.Order, error)
}

type orderAction func(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*models.Order, error)

type choosePackagingRequest struct {
	Choice  string  `json:"choice" validate:"required,oneof=SELLER_PACKS TEEVO_BOX"`
	BoxType *string `json:"box_type" validate:"omitempty,max=32"`
}

type submitPhotosRequest struct {
	Paths []string `json:"paths" validate:"required,min=3,max=4,unique,dive,required,max=512"`
}

type rejectPackagingRequest struct {
	Notes string `json:"notes" validate:"required,max=2000"`
}

// Detail returns one order to its buyer, its seller or an admin.
func Detail(svc Reader, logg *logger.Logger) http.HandlerFunc {
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
		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderView(order))
	}
}

// ChoosePackaging records the seller's packaging choice.
func ChoosePackaging(svc PackagingService, logg *logger.Logger) http.HandlerFunc {
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
		var req choosePackagingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := packaging.ChoiceInput{Choice: enums.PackagingChoice(req.Choice)}
		if req.BoxType != nil {
			box := enums.BoxType(*req.BoxType)
			input.BoxType = &box
		}
		order, err := svc.ChoosePackaging(r.Context(), actor, orderID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderView(order))
	}
}

// SubmitPhotos sends the packaging photos for admin review.
func SubmitPhotos(svc PackagingService, logg *logger.Logger) http.HandlerFunc {
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
		var req submitPhotosRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.SubmitPhotos(r.Context(), actor, orderID, req.Paths)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderView(order))
	}
}

func SellerVerifyPackaging(svc PackagingService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("packaging service unavailable", logg)
	}
	return runAction(svc.SellerVerify, http.StatusOK, logg)
}

// CreateLabel buys the shipping label. It answers 201 with the labelled order.
func CreateLabel(svc LabelService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("shipping service unavailable", logg)
	}
	return runAction(svc.CreateLabel, http.StatusCreated, logg)
}

func MarkShipped(svc DeliveryService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("delivery service unavailable", logg)
	}
	return runAction(svc.MarkShipped, http.StatusOK, logg)
}

func ConfirmReceipt(svc DeliveryService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("delivery service unavailable", logg)
	}
	return runAction(svc.ConfirmReceipt, http.StatusOK, logg)
}

func runAction(run orderAction, status int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, orderID, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := run(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, NewOrderView(order))
	}
}

func unavailable(msg string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, msg))
	}
}

func caller(r *http.Request) (internalorders.Actor, uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		return internalorders.Actor{}, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	orderID, err := validators.PathUUID(r, "orderId")
	if err != nil {
		return internalorders.Actor{}, uuid.Nil, err
	}
	return internalorders.UserActor(userID, middleware.IsAdminFromContext(r.Context())), orderID, nil
}
