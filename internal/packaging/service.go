package packaging

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teevo/fulfilment-backend/internal/notifications"
	"github.com/teevo/fulfilment-backend/internal/orders"
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
)

const (
	MinPhotos       = 3
	MaxPhotos       = 4
	maxNotesLength  = 2000
	maxPathSegments = 8
)

// boxFees are the Teevo box prices in pence.
var boxFees = map[enums.BoxType]int64{
	enums.BoxTypePutter:      499,
	enums.BoxTypeDriver:      599,
	enums.BoxTypeIronSet:     899,
	enums.BoxTypeGolfBag:     1499,
	enums.BoxTypeAccessories: 299,
}

// BoxFee returns the fee for a Teevo box.
func BoxFee(box enums.BoxType) (int64, bool) {
	fee, ok := boxFees[box]
	return fee, ok
}

// ChoiceInput is the seller's packaging declaration.
type ChoiceInput struct {
	Choice  enums.PackagingChoice
	BoxType *enums.BoxType
}

type reviewNotifier interface {
	PackagingReviewed(ctx context.Context, order *models.Order) error
}

// Service runs the packaging sub-flow on top of the order engine.
type Service struct {
	engine   orders.Service
	notifier reviewNotifier
	logg     *logger.Logger
}

func NewService(engine orders.Service, notifier reviewNotifier, logg *logger.Logger) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("order engine required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("review notifier required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{engine: engine, notifier: notifier, logg: logg}, nil
}

// ChoosePackaging records the packaging choice once, while the order is PAID.
func (s *Service) ChoosePackaging(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input ChoiceInput) (*models.Order, error) {
	var fee *int64
	switch input.Choice {
	case enums.PackagingChoiceSellerPacks:
		if input.BoxType != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "box_type only applies to TEEVO_BOX")
		}
	case enums.PackagingChoiceTeevoBox:
		if input.BoxType == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "box_type required for TEEVO_BOX")
		}
		amount, ok := BoxFee(*input.BoxType)
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown box type %q", *input.BoxType)
		}
		fee = &amount
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown packaging choice %q", input.Choice)
	}

	res, err := s.engine.Apply(ctx, orders.Command{
		OrderID: orderID,
		Action:  enums.OrderActionChoosePackaging,
		Actor:   actor,
		Guard: func(o *models.Order) error {
			if o.ShippingPackageChoice != nil {
				return orders.StateConflict(enums.OrderActionChoosePackaging, o, "packaging already chosen")
			}
			return nil
		},
		Mutate: func(o *models.Order, _ time.Time) error {
			choice := input.Choice
			o.ShippingPackageChoice = &choice
			o.BoxType = nil
			if input.BoxType != nil {
				box := *input.BoxType
				o.BoxType = &box
			}
			o.BoxFeeMinorUnits = fee
			return nil
		},
		Data: map[string]any{"choice": input.Choice, "box_type": input.BoxType, "box_fee_minor_units": fee},
	})
	if err != nil {
		return nil, err
	}
	return res.Order, nil
}

// SubmitPhotos replaces the packaging photos and sends them for review.
func (s *Service) SubmitPhotos(ctx context.Context, actor orders.Actor, orderID uuid.UUID, paths []string) (*models.Order, error) {
	cleaned, err := ValidatePhotoPaths(orderID, paths)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Apply(ctx, orders.Command{
		OrderID: orderID,
		Action:  enums.OrderActionSubmitPhotos,
		Actor:   actor,
		Guard: func(o *models.Order) error {
			if o.ShippingPackageChoice == nil {
				return orders.StateConflict(enums.OrderActionSubmitPhotos, o, "choose a packaging option first")
			}
			if o.PackagingReviewStatus != nil && *o.PackagingReviewStatus != enums.PackagingReviewStatusRejected {
				return orders.StateConflict(enums.OrderActionSubmitPhotos, o, "packaging photos already "+strings.ToLower(string(*o.PackagingReviewStatus)))
			}
			return nil
		},
		Mutate: func(o *models.Order, _ time.Time) error {
			submitted := enums.PackagingReviewStatusSubmitted
			o.PackagingPhotoPaths = cleaned
			o.PackagingReviewStatus = &submitted
			o.PackagingReviewNotes = nil
			o.PackagingSubmissionCount++
			return nil
		},
		Data: map[string]any{"photo_count": len(cleaned)},
	})
	if err != nil {
		return nil, err
	}
	return res.Order, nil
}

// SellerVerify is the seller's "packed and ready" confirmation. It alone moves
// the order to PACKAGING_VERIFIED, which is the only state label creation checks.
func (s *Service) SellerVerify(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	res, err := s.engine.Apply(ctx, orders.Command{
		OrderID: orderID,
		Action:  enums.OrderActionSellerVerifyPackaging,
		Actor:   actor,
	})
	if err != nil {
		return nil, err
	}
	return res.Order, nil
}

// AdminVerify approves the submitted photos.
func (s *Service) AdminVerify(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.review(ctx, actor, orderID, enums.OrderActionAdminVerifyPackaging, enums.PackagingReviewStatusVerified, nil)
}

// AdminReject rejects the submitted photos with notes for the seller.
func (s *Service) AdminReject(ctx context.Context, actor orders.Actor, orderID uuid.UUID, notes string) (*models.Order, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection notes required")
	}
	if len(notes) > maxNotesLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "rejection notes exceed %d characters", maxNotesLength)
	}
	return s.review(ctx, actor, orderID, enums.OrderActionAdminRejectPackaging, enums.PackagingReviewStatusRejected, &notes)
}

func (s *Service) review(ctx context.Context, actor orders.Actor, orderID uuid.UUID, action enums.OrderAction, outcome enums.PackagingReviewStatus, notes *string) (*models.Order, error) {
	res, err := s.engine.Apply(ctx, orders.Command{
		OrderID: orderID,
		Action:  action,
		Actor:   actor,
		Guard: func(o *models.Order) error {
			if o.PackagingReviewStatus == nil || *o.PackagingReviewStatus != enums.PackagingReviewStatusSubmitted {
				return orders.StateConflict(action, o, "no packaging submission awaiting review")
			}
			return nil
		},
		Mutate: func(o *models.Order, _ time.Time) error {
			status := outcome
			o.PackagingReviewStatus = &status
			o.PackagingReviewNotes = notes
			return nil
		},
		Data: map[string]any{"review_status": outcome},
	})
	if err != nil {
		return nil, err
	}

	order := res.Order
	_ = notifications.RunSideEffects(s.logg.WithOrderID(ctx, order.ID.String()), s.logg,
		notifications.SideEffect{Name: "packaging_review_email", Run: func(ctx context.Context) error {
			return s.notifier.PackagingReviewed(ctx, order)
		}},
	)
	return order, nil
}

// ValidatePhotoPaths checks that 3 to 4 distinct storage paths all sit under the
// order's own folder and returns them cleaned.
func ValidatePhotoPaths(orderID uuid.UUID, paths []string) ([]string, error) {
	if len(paths) < MinPhotos || len(paths) > MaxPhotos {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "between %d and %d packaging photos required", MinPhotos, MaxPhotos).
			WithDetails(map[string]any{"count": len(paths)})
	}
	prefix := orderID.String() + "/"
	seen := make(map[string]struct{}, len(paths))
	cleaned := make([]string, 0, len(paths))
	for i, raw := range paths {
		p := strings.TrimSpace(raw)
		if !validPhotoPath(p, prefix) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "photo path must be stored under the order folder").
				WithDetails(map[string]any{"index": i, "path": raw})
		}
		if _, dup := seen[p]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate photo path").
				WithDetails(map[string]any{"index": i, "path": raw})
		}
		seen[p] = struct{}{}
		cleaned = append(cleaned, p)
	}
	return cleaned, nil
}

func validPhotoPath(p, prefix string) bool {
	if !strings.HasPrefix(p, prefix) || len(p) == len(prefix) {
		return false
	}
	if strings.ContainsAny(p, "\\\x00") || path.Clean(p) != p {
		return false
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." || segment == "." || segment == "" {
			return false
		}
	}
	return strings.Count(p, "/") <= maxPathSegments
}
