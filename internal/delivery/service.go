package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/internal/notifications"
	"github.com/teevo/fulfilment-backend/internal/orders"
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/shippo"
)

type notifier interface {
	Shipped(ctx context.Context, order *models.Order) error
	FundsReleased(ctx context.Context, order *models.Order) error
}

type orderFinder interface {
	FindByShippingTransaction(ctx context.Context, transactionID string) (*models.Order, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error)
}

type ServiceParams struct {
	Engine   orders.Service
	Orders   orderFinder
	Notifier notifier
	Logger   *logger.Logger
}

// Service tracks an order from dispatch to buyer confirmation.
type Service struct {
	engine   orders.Service
	orders   orderFinder
	notifier notifier
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Engine == nil {
		return nil, fmt.Errorf("order engine required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order finder required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{engine: params.Engine, orders: params.Orders, notifier: params.Notifier, logg: logg}, nil
}

// MarkShipped is the seller's manual "I've posted it".
func (s *Service) MarkShipped(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	res, err := s.engine.Apply(ctx, orders.Command{
		OrderID: orderID,
		Action:  enums.OrderActionMarkShipped,
		Actor:   actor,
		Data:    map[string]any{"via": "manual"},
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, res)
	return res.Order, nil
}

// ConfirmReceipt completes the order for the buyer and releases the seller's funds.
func (s *Service) ConfirmReceipt(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	res, err := s.engine.Apply(ctx, orders.Command{
		OrderID: orderID,
		Action:  enums.OrderActionConfirmReceipt,
		Actor:   actor,
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, res)
	return res.Order, nil
}

// HandleCarrierEvent applies a tracking update. Unrecognised statuses, unknown
// shipments and events that arrive out of order are logged and dropped so the
// provider does not redeliver them. Only storage failures are returned.
func (s *Service) HandleCarrierEvent(ctx context.Context, evt shippo.TrackEvent) error {
	status := evt.Data.TrackingStatus.Status
	ctx = s.logg.WithFields(ctx, map[string]any{
		"carrier_status":          status,
		"tracking_number":         evt.Data.TrackingNumber,
		"shipping_transaction_id": evt.Data.Transaction,
	})

	action, ok := CarrierAction(status)
	if !ok {
		s.logg.Info(ctx, "carrier status not tracked, ignoring")
		return nil
	}

	order, err := s.findOrder(ctx, evt.Data)
	if err != nil {
		return err
	}
	if order == nil {
		s.logg.Warn(ctx, "carrier event matches no order")
		return nil
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	res, err := s.engine.Apply(ctx, orders.Command{
		OrderID: order.ID,
		Action:  action,
		Actor:   orders.SystemActor(orders.RoleCarrier),
		Data: map[string]any{
			"carrier":        evt.Data.Carrier,
			"carrier_status": status,
			"status_details": evt.Data.TrackingStatus.StatusDetails,
			"status_date":    evt.Data.TrackingStatus.StatusDate,
		},
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			s.logg.Warn(ctx, "carrier event does not apply to current order state")
			return nil
		}
		return err
	}
	s.afterTransition(ctx, res)
	return nil
}

func (s *Service) findOrder(ctx context.Context, data shippo.TrackData) (*models.Order, error) {
	if ref := strings.TrimSpace(data.Transaction); ref != "" {
		order, err := s.orders.FindByShippingTransaction(ctx, ref)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order by shipping transaction")
		}
	}
	if ref := strings.TrimSpace(data.TrackingNumber); ref != "" {
		order, err := s.orders.FindByTrackingNumber(ctx, ref)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order by tracking number")
		}
	}
	return nil, nil
}

// afterTransition sends the emails owed for a written transition. The email
// ledger keeps each one to a single send however many paths reach it.
func (s *Service) afterTransition(ctx context.Context, res *orders.Result) {
	if !res.Applied() {
		return
	}
	order := res.Order
	var effects []notifications.SideEffect
	if res.FromSale == enums.SaleStatusPending && order.SaleStatus == enums.SaleStatusShipped {
		effects = append(effects, notifications.SideEffect{Name: "shipping_confirmation_email", Run: func(ctx context.Context) error {
			return s.notifier.Shipped(ctx, order)
		}})
	}
	if order.SaleStatus == enums.SaleStatusComplete && res.FromSale != enums.SaleStatusComplete {
		effects = append(effects, notifications.SideEffect{Name: "funds_released_email", Run: func(ctx context.Context) error {
			return s.notifier.FundsReleased(ctx, order)
		}})
	}
	_ = notifications.RunSideEffects(s.logg.WithOrderID(ctx, order.ID.String()), s.logg, effects...)
}

// CarrierAction maps a carrier tracking status onto the transition it drives.
// Statuses are compared case-insensitively with spaces and hyphens folded to
// underscores. Anything other than in-transit or delivered is not tracked.
func CarrierAction(status string) (enums.OrderAction, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(status))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	switch normalized {
	case "TRANSIT", "IN_TRANSIT":
		return enums.OrderActionMarkShipped, true
	case "DELIVERED":
		return enums.OrderActionMarkDelivered, true
	default:
		return "", false
	}
}
