package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/outbox"
)

// Repository defines persistence operations for the orders table.
// Finders return gorm.ErrRecordNotFound when no row matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	FindByShippingTransaction(ctx context.Context, transactionID string) (*models.Order, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error)
	// CompareAndSwap writes next only while the stored row still carries prev's version.
	CompareAndSwap(ctx context.Context, prev, next *models.Order) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type historyEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.OrderEvent) error
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error)
}

// Service applies transitions and serves order reads.
type Service interface {
	Apply(ctx context.Context, cmd Command) (*Result, error)
	Preflight(ctx context.Context, cmd Command) (*Result, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	History(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.OrderEvent, error)
}
