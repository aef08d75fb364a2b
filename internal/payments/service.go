package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/internal/listings"
	"github.com/teevo/fulfilment-backend/internal/notifications"
	"github.com/teevo/fulfilment-backend/internal/orders"
	"github.com/teevo/fulfilment-backend/pkg/db"
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/outbox"
	stripeclient "github.com/teevo/fulfilment-backend/pkg/stripe"
	"github.com/teevo/fulfilment-backend/pkg/types"
)

const paymentReferenceIndex = "ux_orders_payment_reference"

// PaymentConfirmation is a captured payment as reported by the provider.
type PaymentConfirmation struct {
	PaymentReference string
	PaymentIntentID  string
	ListingID        uuid.UUID
	BuyerID          uuid.UUID
	SellerID         uuid.UUID
	AmountMinorUnits int64
	Currency         string
	BuyerAddress     types.PostalAddress
}

// CreateResult reports the order for a payment and whether this call created it.
type CreateResult struct {
	Order   *models.Order
	Created bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type historyEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.OrderEvent) error
}

type addressBackfiller interface {
	BackfillAddress(ctx context.Context, userID uuid.UUID, address types.PostalAddress) error
}

type orderPlacedNotifier interface {
	OrderPlaced(ctx context.Context, order *models.Order) error
}

// ServiceParams wires the payment ingress.
type ServiceParams struct {
	Orders   orders.Repository
	Engine   orders.Service
	Listings *listings.Repository
	Profiles addressBackfiller
	Notifier orderPlacedNotifier
	History  historyEmitter
	TX       txRunner
	Sessions stripeclient.CheckoutSessions
	Logger   *logger.Logger
}

// Service turns provider payment events into orders.
type Service struct {
	orders   orders.Repository
	engine   orders.Service
	listings *listings.Repository
	profiles addressBackfiller
	notifier orderPlacedNotifier
	history  historyEmitter
	tx       txRunner
	sessions stripeclient.CheckoutSessions
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order engine required")
	}
	if params.Listings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "listings repository required")
	}
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile backfiller required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order notifier required")
	}
	if params.History == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "history emitter required")
	}
	if params.TX == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		orders:   params.Orders,
		engine:   params.Engine,
		listings: params.Listings,
		profiles: params.Profiles,
		notifier: params.Notifier,
		history:  params.History,
		tx:       params.TX,
		sessions: params.Sessions,
		logg:     logg,
	}, nil
}

// CreateFromPayment creates the order for a payment exactly once. Webhook and
// poll deliveries both land here; the unique index on payment_reference decides
// the race, and only the winning call runs the side effects.
func (s *Service) CreateFromPayment(ctx context.Context, in PaymentConfirmation) (*CreateResult, error) {
	in.PaymentReference = strings.TrimSpace(in.PaymentReference)
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "payment_reference", in.PaymentReference)

	existing, err := s.findExisting(ctx, in.PaymentReference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, existing.ID.String()), "order already exists for payment")
		return &CreateResult{Order: existing}, nil
	}

	order := in.toOrder()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if err := s.listings.WithTx(tx).MarkSold(ctx, order.ListingID); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			s.logg.Warn(s.logg.WithField(ctx, "listing_id", order.ListingID.String()), "sold listing not found")
		}
		return s.history.Emit(ctx, tx, outbox.OrderEvent{
			OrderID:      order.ID,
			Action:       enums.OrderActionRecordPayment,
			Source:       enums.OrderEventSourcePayment,
			ToFulfilment: order.FulfilmentStatus,
			ToSale:       order.SaleStatus,
			Data:         map[string]any{"payment_reference": order.PaymentReference},
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, paymentReferenceIndex) {
			winner, findErr := s.findExisting(ctx, in.PaymentReference)
			if findErr != nil {
				return nil, findErr
			}
			if winner != nil {
				s.logg.Info(s.logg.WithOrderID(ctx, winner.ID.String()), "concurrent delivery created the order first")
				return &CreateResult{Order: winner}, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order created from payment")
	_ = notifications.RunSideEffects(ctx, s.logg,
		notifications.SideEffect{Name: "backfill_buyer_address", Run: func(ctx context.Context) error {
			return s.profiles.BackfillAddress(ctx, order.BuyerID, order.BuyerAddress)
		}},
		notifications.SideEffect{Name: "order_placed_emails", Run: func(ctx context.Context) error {
			return s.notifier.OrderPlaced(ctx, order)
		}},
	)
	return &CreateResult{Order: order, Created: true}, nil
}

// RecordDispute marks the order for a payment intent as disputed.
func (s *Service) RecordDispute(ctx context.Context, paymentIntentID string) error {
	return s.applyPaymentEvent(ctx, paymentIntentID, enums.OrderActionOpenDispute)
}

// RecordRefund marks the order for a payment intent as refunded.
func (s *Service) RecordRefund(ctx context.Context, paymentIntentID string) error {
	return s.applyPaymentEvent(ctx, paymentIntentID, enums.OrderActionRefund)
}

func (s *Service) applyPaymentEvent(ctx context.Context, paymentIntentID string, action enums.OrderAction) error {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"payment_intent_id": paymentIntentID, "action": string(action)})

	order, err := s.orders.FindByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Info(ctx, "payment event matches no order")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment intent")
	}
	_, err = s.engine.Apply(ctx, orders.Command{
		OrderID: order.ID,
		Action:  action,
		Actor:   orders.SystemActor(orders.RolePaymentProvider),
		Data:    map[string]any{"payment_intent_id": paymentIntentID},
	})
	return err
}

func (s *Service) findExisting(ctx context.Context, reference string) (*models.Order, error) {
	order, err := s.orders.FindByPaymentReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment reference")
	}
	return order, nil
}

func (in PaymentConfirmation) validate() error {
	missing := []string{}
	if strings.TrimSpace(in.PaymentReference) == "" {
		missing = append(missing, "payment_reference")
	}
	if in.ListingID == uuid.Nil {
		missing = append(missing, "listing_id")
	}
	if in.BuyerID == uuid.Nil {
		missing = append(missing, "buyer_id")
	}
	if in.SellerID == uuid.Nil {
		missing = append(missing, "seller_id")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment metadata incomplete").
			WithDetails(map[string]any{"missing_fields": missing})
	}
	if in.AmountMinorUnits < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid amount %d", in.AmountMinorUnits))
	}
	return nil
}

func (in PaymentConfirmation) toOrder() *models.Order {
	order := &models.Order{
		ListingID:        in.ListingID,
		BuyerID:          in.BuyerID,
		SellerID:         in.SellerID,
		AmountMinorUnits: in.AmountMinorUnits,
		Currency:         strings.ToLower(strings.TrimSpace(in.Currency)),
		PaymentReference: strings.TrimSpace(in.PaymentReference),
		SaleStatus:       enums.SaleStatusPending,
		FulfilmentStatus: enums.FulfilmentStatusPaid,
		BuyerAddress:     in.BuyerAddress.Normalize(),
	}
	if order.Currency == "" {
		order.Currency = "gbp"
	}
	if id := strings.TrimSpace(in.PaymentIntentID); id != "" {
		order.PaymentIntentID = &id
	}
	return order
}
