package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/db/models"
)

// mutableColumns lists every column a transition may write. Identity, money and
// the captured buyer address are immutable after creation and are never selected.
var mutableColumns = []string{
	"sale_status",
	"fulfilment_status",
	"shipping_package_choice",
	"box_type",
	"box_fee_minor_units",
	"packaging_photo_paths",
	"packaging_review_status",
	"packaging_review_notes",
	"packaging_submission_count",
	"shipping_label_url",
	"shipping_qr_code_url",
	"tracking_number",
	"shipping_transaction_id",
	"shipping_service_token",
	"shipped_at",
	"delivered_at",
	"completed_at",
	"version",
	"updated_at",
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return errors.New("order required")
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	return r.first(ctx, "payment_reference = ?", reference)
}

func (r *repository) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	return r.first(ctx, "payment_intent_id = ?", paymentIntentID)
}

func (r *repository) FindByShippingTransaction(ctx context.Context, transactionID string) (*models.Order, error) {
	return r.first(ctx, "shipping_transaction_id = ?", transactionID)
}

func (r *repository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error) {
	return r.first(ctx, "tracking_number = ?", trackingNumber)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where(query, arg).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// CompareAndSwap uses a struct update so column serializers (photo paths) apply.
func (r *repository) CompareAndSwap(ctx context.Context, prev, next *models.Order) (bool, error) {
	if prev == nil || next == nil {
		return false, errors.New("orders required")
	}
	if prev.ID != next.ID {
		return false, errors.New("order id mismatch")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", prev.ID, prev.Version).
		Select(mutableColumns).
		Updates(next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
