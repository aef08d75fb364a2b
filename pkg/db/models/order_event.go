package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/enums"
)

// OrderEvent is an append-only history row written alongside every applied transition.
type OrderEvent struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID        uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	Action         enums.OrderAction      `gorm:"column:action;type:text;not null" json:"action"`
	Source         enums.OrderEventSource `gorm:"column:source;type:text;not null" json:"source"`
	ActorID        *uuid.UUID             `gorm:"column:actor_id;type:uuid" json:"actor_id,omitempty"`
	FromFulfilment enums.FulfilmentStatus `gorm:"column:from_fulfilment_status;type:text;not null" json:"from_fulfilment_status"`
	ToFulfilment   enums.FulfilmentStatus `gorm:"column:to_fulfilment_status;type:text;not null" json:"to_fulfilment_status"`
	FromSale       enums.SaleStatus       `gorm:"column:from_sale_status;type:text;not null" json:"from_sale_status"`
	ToSale         enums.SaleStatus       `gorm:"column:to_sale_status;type:text;not null" json:"to_sale_status"`
	Payload        json.RawMessage        `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (e *OrderEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
