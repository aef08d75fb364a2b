package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/teevo/fulfilment-backend/pkg/enums"
)

// Listing is the subset of a marketplace listing the fulfilment flow reads or writes.
type Listing struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID   uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	Title      string              `gorm:"column:title;type:text;not null"`
	Status     enums.ListingStatus `gorm:"column:status;type:text;not null"`
	SizePreset *enums.SizePreset   `gorm:"column:size_preset;type:text"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
