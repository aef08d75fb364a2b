package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/internal/orders/orderstest"
	"github.com/teevo/fulfilment-backend/pkg/db"
	"github.com/teevo/fulfilment-backend/pkg/db/dbtest"
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
)

func TestRepositoryFinders(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	order := orderstest.NewOrder(
		orderstest.WithLabel("txn_42", "TRK42"),
		orderstest.WithPaymentIntent("pi_42"),
	)
	require.NoError(t, repo.Create(ctx, order))

	found, err := repo.FindByPaymentReference(ctx, order.PaymentReference)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	found, err = repo.FindByShippingTransaction(ctx, "txn_42")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	found, err = repo.FindByTrackingNumber(ctx, "TRK42")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	found, err = repo.FindByPaymentIntent(ctx, "pi_42")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = repo.FindByTrackingNumber(ctx, "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryPaymentReferenceIsUnique(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	first := orderstest.NewOrder()
	require.NoError(t, repo.Create(ctx, first))

	dup := orderstest.NewOrder(func(o *models.Order) { o.PaymentReference = first.PaymentReference })
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, "ux_orders_payment_reference"))
}

func TestCompareAndSwapRejectsStaleVersion(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	order := orderstest.Insert(t, client.DB(), orderstest.NewOrder())

	next := cloneOrder(order)
	next.FulfilmentStatus = enums.FulfilmentStatusPackagingSubmitted
	next.PackagingPhotoPaths = []string{order.ID.String() + "/a.jpg"}
	next.Version = order.Version + 1
	swapped, err := repo.CompareAndSwap(ctx, order, next)
	require.NoError(t, err)
	assert.True(t, swapped)

	stale := cloneOrder(order)
	stale.FulfilmentStatus = enums.FulfilmentStatusShipped
	stale.Version = order.Version + 1
	swapped, err = repo.CompareAndSwap(ctx, order, stale)
	require.NoError(t, err)
	assert.False(t, swapped)

	stored := orderstest.Reload(t, client.DB(), order.ID)
	assert.Equal(t, enums.FulfilmentStatusPackagingSubmitted, stored.FulfilmentStatus)
	assert.Equal(t, []string{order.ID.String() + "/a.jpg"}, stored.PackagingPhotoPaths)
	assert.Equal(t, order.BuyerAddress, stored.BuyerAddress)
}
