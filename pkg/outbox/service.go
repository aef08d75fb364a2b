package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	"github.com/teevo/fulfilment-backend/pkg/logger"
)

const envelopeVersion = 1

// OrderEvent describes one applied transition of an order.
type OrderEvent struct {
	OrderID        uuid.UUID
	Action         enums.OrderAction
	Source         enums.OrderEventSource
	ActorID        *uuid.UUID
	FromFulfilment enums.FulfilmentStatus
	ToFulfilment   enums.FulfilmentStatus
	FromSale       enums.SaleStatus
	ToSale         enums.SaleStatus
	Data           any
	OccurredAt     time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit appends the event to order_events inside tx so history commits or rolls
// back together with the order row it describes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event OrderEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if event.OrderID == uuid.Nil {
		return errors.New("order id required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	envelope := PayloadEnvelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	row := models.OrderEvent{
		OrderID:        event.OrderID,
		Action:         event.Action,
		Source:         event.Source,
		ActorID:        event.ActorID,
		FromFulfilment: event.FromFulfilment,
		ToFulfilment:   event.ToFulfilment,
		FromSale:       event.FromSale,
		ToSale:         event.ToSale,
		Payload:        payload,
	}
	if err := s.repo.Insert(tx, &row); err != nil {
		return err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":         envelope.EventID,
			"order_id":         event.OrderID.String(),
			"action":           event.Action,
			"from_fulfilment":  event.FromFulfilment,
			"to_fulfilment":    event.ToFulfilment,
			"transition_actor": event.Source,
		})
		s.logg.Info(logCtx, "order event recorded")
	}
	return nil
}

// History returns the recorded events for an order, oldest first.
func (s *Service) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	return s.repo.ListByOrder(ctx, orderID)
}
