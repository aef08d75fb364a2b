package listings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
)

// Repository exposes the listing reads and writes the fulfilment flow needs.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a listings repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a listing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// MarkSold flips the listing to sold. Marking an already sold listing succeeds.
func (r *Repository) MarkSold(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Update("status", enums.ListingStatusSold)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SizePreset returns the parcel preset configured on the listing, or nil.
func (r *Repository) SizePreset(ctx context.Context, id uuid.UUID) (*enums.SizePreset, error) {
	listing, err := r.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing.SizePreset, nil
}

// Title returns the listing title for notification copy.
func (r *Repository) Title(ctx context.Context, id uuid.UUID) (string, error) {
	listing, err := r.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load listing %s: %w", id, err)
	}
	return listing.Title, nil
}
