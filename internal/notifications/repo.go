package notifications

import (
	"context"

	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/db"
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
)

const sentEmailsUniqueIndex = "ux_sent_emails_type_reference"

// Repository exposes the append-only sent-email ledger.
type Repository interface {
	Exists(ctx context.Context, emailType enums.EmailType, referenceID string) (bool, error)
	// Record inserts the ledger row; a row already present is not an error.
	Record(ctx context.Context, entry *models.SentEmail) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Exists(ctx context.Context, emailType enums.EmailType, referenceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SentEmail{}).
		Where("email_type = ? AND reference_id = ?", emailType, referenceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) Record(ctx context.Context, entry *models.SentEmail) error {
	err := r.db.WithContext(ctx).Create(entry).Error
	if err != nil && db.IsUniqueViolation(err, sentEmailsUniqueIndex) {
		return nil
	}
	return err
}
