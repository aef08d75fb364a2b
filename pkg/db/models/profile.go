package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/teevo/fulfilment-backend/pkg/types"
)

// Profile holds the contact details and default postal address of a user account.
type Profile struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Email     string              `gorm:"column:email;type:text;not null"`
	FullName  string              `gorm:"column:full_name;type:text;not null;default:''"`
	Address   types.PostalAddress `gorm:"embedded;embeddedPrefix:address_"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
