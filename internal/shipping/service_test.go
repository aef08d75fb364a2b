package shipping

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teevo/fulfilment-backend/internal/listings"
	"github.com/teevo/fulfilment-backend/internal/orders"
	"github.com/teevo/fulfilment-backend/internal/orders/orderstest"
	"github.com/teevo/fulfilment-backend/internal/users"
	"github.com/teevo/fulfilment-backend/pkg/db"
	"github.com/teevo/fulfilment-backend/pkg/db/dbtest"
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/outbox"
	teevoredis "github.com/teevo/fulfilment-backend/pkg/redis"
	"github.com/teevo/fulfilment-backend/pkg/redis/redistest"
	"github.com/teevo/fulfilment-backend/pkg/shippo"
	"github.com/teevo/fulfilment-backend/pkg/shippo/shippotest"
	"github.com/teevo/fulfilment-backend/pkg/types"
)

type fixture struct {
	svc    *Service
	client *db.Client
	shippo *shippotest.Server
	locks  *teevoredis.Client
	order  *models.Order
	seller orders.Actor
}

type fixtureConfig struct {
	sellerAddress types.PostalAddress
	preset        *enums.SizePreset
}

func newFixture(t *testing.T, cfg fixtureConfig, opts ...orderstest.Option) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	history := outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop())
	engine, err := orders.NewService(orders.ServiceParams{Repo: orders.NewRepository(client.DB()), TX: client, History: history})
	require.NoError(t, err)
	directory, err := users.NewDirectory(users.NewRepository(client.DB()))
	require.NoError(t, err)
	locks, _ := redistest.NewClient()
	server := shippotest.NewServer(t)

	svc, err := NewService(ServiceParams{
		Engine:          engine,
		Provider:        server.Client(t),
		Origins:         directory,
		Listings:        listings.NewRepository(client.DB()),
		Locks:           locks,
		AllowedServices: []string{"evri_standard", "royal_mail_tracked_48"},
	})
	require.NoError(t, err)

	opts = append([]orderstest.Option{orderstest.WithStatus(enums.FulfilmentStatusPackagingVerified, enums.SaleStatusPending)}, opts...)
	order := orderstest.Insert(t, client.DB(), orderstest.NewOrder(opts...))
	orderstest.InsertProfile(t, client.DB(), order.SellerID, "seller@example.com", cfg.sellerAddress)
	orderstest.InsertListing(t, client.DB(), order.ListingID, order.SellerID, cfg.preset)

	return &fixture{
		svc:    svc,
		client: client,
		shippo: server,
		locks:  locks,
		order:  order,
		seller: orders.UserActor(order.SellerID, false),
	}
}

func defaultConfig() fixtureConfig {
	return fixtureConfig{sellerAddress: orderstest.SellerAddress()}
}

func TestCreateLabelBuysPreferredAllowedService(t *testing.T) {
	bag := enums.SizePresetGolfBag
	f := newFixture(t, fixtureConfig{sellerAddress: orderstest.SellerAddress(), preset: &bag})

	order, err := f.svc.CreateLabel(context.Background(), f.seller, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FulfilmentStatusLabelCreated, order.FulfilmentStatus)
	require.NotNil(t, order.ShippingTransactionID)
	assert.Equal(t, "txn_rate_evri_1", *order.ShippingTransactionID)
	assert.Equal(t, "TRKtxn_rate_evri_1", *order.TrackingNumber)
	assert.Equal(t, "evri_standard", *order.ShippingServiceToken)
	assert.NotNil(t, order.ShippingQRCodeURL)

	assert.Equal(t, []string{"rate_evri"}, f.shippo.PurchasedRates())
	shipments := f.shippo.Shipments()
	require.Len(t, shipments, 1)
	var body struct {
		AddressFrom shippo.Address  `json:"address_from"`
		AddressTo   shippo.Address  `json:"address_to"`
		Parcels     []shippo.Parcel `json:"parcels"`
	}
	require.NoError(t, json.Unmarshal(shipments[0], &body))
	assert.Equal(t, "KA10 6EP", body.AddressFrom.Zip)
	assert.Equal(t, "KY16 9XL", body.AddressTo.Zip)
	require.Len(t, body.Parcels, 1)
	assert.Equal(t, "130", body.Parcels[0].Length)

	stored := orderstest.Reload(t, f.client.DB(), f.order.ID)
	assert.Equal(t, enums.FulfilmentStatusLabelCreated, stored.FulfilmentStatus)
	assert.True(t, stored.HasLabel())
}

func TestCreateLabelTwiceNeverBuysASecondLabel(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.svc.CreateLabel(ctx, f.seller, f.order.ID)
	require.NoError(t, err)
	calls := f.shippo.Calls()

	_, err = f.svc.CreateLabel(ctx, f.seller, f.order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, calls, f.shippo.Calls())
}

func TestCreateLabelConcurrentRequestsBuyOneLabel(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateLabel(ctx, f.seller, f.order.ID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict) || pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "unexpected error %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Len(t, f.shippo.PurchasedRates(), 1)
}

func TestCreateLabelHeldLockIsConflict(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	ok, release, err := f.locks.TryLock(ctx, lockScope, f.order.ID.String(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.CreateLabel(ctx, f.seller, f.order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Zero(t, f.shippo.Calls())

	release(ctx)
	_, err = f.svc.CreateLabel(ctx, f.seller, f.order.ID)
	assert.NoError(t, err)
}

func TestCreateLabelPreconditionsNeverContactProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("not verified", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), orderstest.WithStatus(enums.FulfilmentStatusPackagingSubmitted, enums.SaleStatusPending))
		_, err := f.svc.CreateLabel(ctx, f.seller, f.order.ID)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
		assert.Zero(t, f.shippo.Calls())
	})

	t.Run("buyer cannot create", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		_, err := f.svc.CreateLabel(ctx, orders.UserActor(f.order.BuyerID, false), f.order.ID)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
		assert.Zero(t, f.shippo.Calls())
	})

	t.Run("stranger sees not found", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		_, err := f.svc.CreateLabel(ctx, orders.UserActor(uuid.New(), false), f.order.ID)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
		assert.Zero(t, f.shippo.Calls())
	})

	t.Run("seller address incomplete", func(t *testing.T) {
		f := newFixture(t, fixtureConfig{sellerAddress: types.PostalAddress{Name: "Sam Seller", City: "Troon"}})
		_, err := f.svc.CreateLabel(ctx, f.seller, f.order.ID)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		details, ok := pkgerrors.As(err).Details().(map[string]any)
		require.True(t, ok)
		assert.Contains(t, details["missing_fields"], "postcode")
		assert.Zero(t, f.shippo.Calls())
	})

	t.Run("buyer address missing", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), orderstest.WithoutBuyerAddress())
		_, err := f.svc.CreateLabel(ctx, f.seller, f.order.ID)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))
		assert.Zero(t, f.shippo.Calls())
	})
}

func TestCreateLabelRateFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no rates", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		f.shippo.SetRates(nil)
		_, err := f.svc.CreateLabel(ctx, f.seller, f.order.ID)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProviderRejected))
		assert.Contains(t, err.Error(), "check the carrier accounts")
		assert.Empty(t, f.shippo.PurchasedRates())
	})

	t.Run("only premium services offered", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		f.shippo.SetRates(shippotest.DefaultRates()[:1])
		_, err := f.svc.CreateLabel(ctx, f.seller, f.order.ID)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProviderRejected))
		assert.Empty(t, f.shippo.PurchasedRates())

		stored := orderstest.Reload(t, f.client.DB(), f.order.ID)
		assert.Equal(t, enums.FulfilmentStatusPackagingVerified, stored.FulfilmentStatus)
	})
}

func TestCreateLabelPurchaseFailureIsRetryable(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	f.shippo.SetPurchaseStatus("ERROR")

	_, err := f.svc.CreateLabel(ctx, f.seller, f.order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProviderRejected))
	stored := orderstest.Reload(t, f.client.DB(), f.order.ID)
	assert.False(t, stored.HasLabel())
	assert.Equal(t, f.order.Version, stored.Version)

	f.shippo.SetPurchaseStatus("SUCCESS")
	order, err := f.svc.CreateLabel(ctx, f.seller, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FulfilmentStatusLabelCreated, order.FulfilmentStatus)
	assert.Len(t, f.shippo.PurchasedRates(), 2)
}

func TestSelectRatePrefersAllowListOrderThenPrice(t *testing.T) {
	svc := &Service{allowed: NewAllowList([]string{" Royal_Mail_Tracked_48 ", "evri_standard", "evri_standard"})}
	rates := append(shippotest.DefaultRates(), shippo.Rate{
		ObjectID: "rate_rm48_cheap", Amount: "2.95", ServiceLevel: shippo.ServiceLevel{Token: "royal_mail_tracked_48"},
	})

	rate, err := svc.selectRate(&shippo.Shipment{Rates: rates})
	require.NoError(t, err)
	assert.Equal(t, "rate_rm48_cheap", rate.ObjectID)
	assert.Len(t, svc.allowed, 2)
}

func TestParcelForDefaultsToSmall(t *testing.T) {
	large := enums.SizePresetLarge
	unknown := enums.SizePreset("pallet")

	assert.Equal(t, parcelPresets[enums.SizePresetSmall], ParcelFor(nil))
	assert.Equal(t, parcelPresets[enums.SizePresetSmall], ParcelFor(&unknown))
	assert.Equal(t, "125", ParcelFor(&large).Length)
}
