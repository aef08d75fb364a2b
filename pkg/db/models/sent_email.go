package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/enums"
)

// SentEmail is an append-only ledger row proving an email of a type went out for a reference.
type SentEmail struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EmailType   enums.EmailType `gorm:"column:email_type;type:text;not null;uniqueIndex:ux_sent_emails_type_reference"`
	ReferenceID string          `gorm:"column:reference_id;type:text;not null;uniqueIndex:ux_sent_emails_type_reference"`
	Recipient   string          `gorm:"column:recipient;type:text;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (e *SentEmail) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
