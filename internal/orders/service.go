package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/metrics"
	"github.com/teevo/fulfilment-backend/pkg/outbox"
)

const defaultAttempts = 3

// Outcome reports whether a transition wrote to the order.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeNoop    Outcome = "noop"
)

// Command asks the engine to apply one action to one order.
//
// Guard runs against the freshly read order after the table checks pass; it
// returns a typed error to reject. Mutate edits a copy of the order and must
// not touch status fields, which the engine owns.
type Command struct {
	OrderID uuid.UUID
	Action  enums.OrderAction
	Actor   Actor
	Guard   func(order *models.Order) error
	Mutate  func(order *models.Order, now time.Time) error
	Data    any
}

// Result is the outcome of an applied or skipped transition.
type Result struct {
	Order          *models.Order
	Outcome        Outcome
	Role           Role
	FromFulfilment enums.FulfilmentStatus
	FromSale       enums.SaleStatus
}

// Applied reports whether the transition changed the order.
func (r *Result) Applied() bool {
	return r != nil && r.Outcome == OutcomeApplied
}

// ServiceParams wires the order engine.
type ServiceParams struct {
	Repo     Repository
	TX       txRunner
	History  historyEmitter
	Metrics  *metrics.FulfilmentMetrics
	Logger   *logger.Logger
	Attempts int
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	history  historyEmitter
	metrics  *metrics.FulfilmentMetrics
	logg     *logger.Logger
	attempts int
	now      func() time.Time
}

var errStale = errors.New("order changed concurrently")

// NewService builds the order engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	attempts := params.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		tx:       params.TX,
		history:  params.History,
		metrics:  params.Metrics,
		logg:     logg,
		attempts: attempts,
		now:      clock,
	}, nil
}

func (s *service) Apply(ctx context.Context, cmd Command) (*Result, error) {
	res, err := s.apply(ctx, cmd)
	switch {
	case err == nil:
		s.metrics.IncTransition(string(cmd.Action), string(res.Outcome))
	case pkgerrors.Retryable(err):
		s.metrics.IncTransition(string(cmd.Action), metrics.OutcomeError)
	default:
		s.metrics.IncTransition(string(cmd.Action), metrics.OutcomeRejected)
	}
	return res, err
}

func (s *service) apply(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	transition, ok := Lookup(cmd.Action)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order action %q", cmd.Action)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id": cmd.OrderID.String(),
		"action":   string(cmd.Action),
	})

	for attempt := 1; attempt <= s.attempts; attempt++ {
		result, err := s.evaluate(ctx, transition, cmd)
		if err != nil {
			return nil, err
		}
		if result.Outcome == OutcomeNoop {
			s.logg.Info(s.logg.WithActorRole(ctx, string(result.Role)), "transition already satisfied")
			return result, nil
		}
		current := result.Order
		role := result.Role

		now := s.now()
		next := cloneOrder(current)
		if cmd.Mutate != nil {
			if err := cmd.Mutate(next, now); err != nil {
				return nil, err
			}
		}
		advance(transition, current, next, now)

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			swapped, err := s.repo.WithTx(tx).CompareAndSwap(ctx, current, next)
			if err != nil {
				return err
			}
			if !swapped {
				return errStale
			}
			return s.history.Emit(ctx, tx, outbox.OrderEvent{
				OrderID:        next.ID,
				Action:         cmd.Action,
				Source:         role.Source(),
				ActorID:        cmd.Actor.actorID(),
				FromFulfilment: current.FulfilmentStatus,
				ToFulfilment:   next.FulfilmentStatus,
				FromSale:       current.SaleStatus,
				ToSale:         next.SaleStatus,
				Data:           cmd.Data,
				OccurredAt:     now,
			})
		})
		if errors.Is(err, errStale) {
			s.logg.Debug(ctx, fmt.Sprintf("order version moved, retrying (attempt %d)", attempt))
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order transition")
		}

		result.Order = next
		result.Outcome = OutcomeApplied
		return result, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently, retry the request")
}

// Preflight runs the role, state and guard checks of cmd against the stored
// order without writing. A nil error with an empty Outcome means Apply would
// currently write; OutcomeNoop means it would succeed without writing.
func (s *service) Preflight(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	transition, ok := Lookup(cmd.Action)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order action %q", cmd.Action)
	}
	return s.evaluate(ctx, transition, cmd)
}

func (s *service) evaluate(ctx context.Context, transition Transition, cmd Command) (*Result, error) {
	current, err := s.repo.FindByID(ctx, cmd.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	role, err := s.check(transition, cmd, current)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Order:          current,
		Role:           role,
		FromFulfilment: current.FulfilmentStatus,
		FromSale:       current.SaleStatus,
	}
	if transition.isNoop(role, current) {
		result.Outcome = OutcomeNoop
		return result, nil
	}
	if err := s.checkState(transition, role, current); err != nil {
		return nil, err
	}
	if cmd.Guard != nil {
		if err := cmd.Guard(current); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// check resolves the actor's role for the transition.
func (s *service) check(t Transition, cmd Command, order *models.Order) (Role, error) {
	role, ok := t.resolveRole(cmd.Actor, order)
	if !ok {
		if !cmd.Actor.IsSystem() && !cmd.Actor.CanView(order) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return "", pkgerrors.Newf(pkgerrors.CodeForbidden, "caller may not perform %s on this order", t.Action)
	}
	return role, nil
}

func (s *service) checkState(t Transition, role Role, order *models.Order) error {
	if order.SaleStatus == enums.SaleStatusRefunded && (role == RoleBuyer || role == RoleSeller) {
		return stateConflict(t.Action, order, "order has been refunded")
	}
	if !t.allowsFrom(order.FulfilmentStatus) {
		return stateConflict(t.Action, order, "action not allowed in current fulfilment status")
	}
	if !t.allowsSale(role, order.SaleStatus) {
		return stateConflict(t.Action, order, "action not allowed in current sale status")
	}
	return nil
}

// StateConflict builds the precondition error used by transition guards.
func StateConflict(action enums.OrderAction, order *models.Order, reason string) error {
	return stateConflict(action, order, reason)
}

func stateConflict(action enums.OrderAction, order *models.Order, reason string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, reason).WithDetails(map[string]any{
		"action":            string(action),
		"fulfilment_status": string(order.FulfilmentStatus),
		"sale_status":       string(order.SaleStatus),
	})
}

// advance applies the table's status changes and stamps the milestone times.
func advance(t Transition, stored, order *models.Order, now time.Time) {
	order.FulfilmentStatus = t.nextFulfilment(stored)
	order.SaleStatus = t.nextSale(order.SaleStatus)

	if order.ShippedAt == nil && (order.FulfilmentStatus == enums.FulfilmentStatusShipped || order.SaleStatus == enums.SaleStatusShipped) {
		order.ShippedAt = timePtr(now)
	}
	if order.DeliveredAt == nil && order.FulfilmentStatus == enums.FulfilmentStatusDelivered {
		order.DeliveredAt = timePtr(now)
	}
	if order.CompletedAt == nil && order.FulfilmentStatus == enums.FulfilmentStatusCompleted {
		order.CompletedAt = timePtr(now)
	}
	order.Version++
	order.UpdatedAt = now
}

func cloneOrder(order *models.Order) *models.Order {
	clone := *order
	if order.PackagingPhotoPaths != nil {
		clone.PackagingPhotoPaths = append([]string(nil), order.PackagingPhotoPaths...)
	}
	return &clone
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.CanView(order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) History(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.OrderEvent, error) {
	if !actor.Admin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin capability required")
	}
	if _, err := s.Get(ctx, actor, orderID); err != nil {
		return nil, err
	}
	events, err := s.history.History(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order history")
	}
	return events, nil
}
