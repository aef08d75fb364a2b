// Package orderstest seeds orders, listings and profiles for package tests.
package orderstest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	"github.com/teevo/fulfilment-backend/pkg/types"
)

// Option adjusts a fixture order before it is inserted.
type Option func(*models.Order)

// BuyerAddress is a complete UK delivery address.
func BuyerAddress() types.PostalAddress {
	return types.PostalAddress{
		Name:     "Ada Buyer",
		Line1:    "1 Fairway Close",
		City:     "St Andrews",
		Postcode: "KY16 9XL",
		Country:  "GB",
	}
}

// SellerAddress is a complete UK origin address.
func SellerAddress() types.PostalAddress {
	return types.PostalAddress{
		Name:     "Sam Seller",
		Line1:    "18 Links Road",
		City:     "Troon",
		Postcode: "KA10 6EP",
		Country:  "GB",
	}
}

// NewOrder returns a paid order for a £100 item.
func NewOrder(opts ...Option) *models.Order {
	order := &models.Order{
		ID:               uuid.New(),
		ListingID:        uuid.New(),
		BuyerID:          uuid.New(),
		SellerID:         uuid.New(),
		AmountMinorUnits: 10000,
		Currency:         "gbp",
		PaymentReference: "cs_test_" + uuid.NewString(),
		SaleStatus:       enums.SaleStatusPending,
		FulfilmentStatus: enums.FulfilmentStatusPaid,
		BuyerAddress:     BuyerAddress(),
		Version:          1,
	}
	for _, opt := range opts {
		opt(order)
	}
	return order
}

// WithStatus sets both status vocabularies.
func WithStatus(fulfilment enums.FulfilmentStatus, sale enums.SaleStatus) Option {
	return func(o *models.Order) {
		o.FulfilmentStatus = fulfilment
		o.SaleStatus = sale
	}
}

// WithPackaging marks the packaging choice as made.
func WithPackaging(choice enums.PackagingChoice) Option {
	return func(o *models.Order) {
		o.ShippingPackageChoice = &choice
		if o.FulfilmentStatus == enums.FulfilmentStatusPaid {
			o.FulfilmentStatus = enums.FulfilmentStatusPackagingSubmitted
		}
	}
}

// WithReview sets the packaging review status.
func WithReview(status enums.PackagingReviewStatus) Option {
	return func(o *models.Order) {
		o.PackagingReviewStatus = &status
	}
}

// WithLabel records a purchased label.
func WithLabel(transactionID, trackingNumber string) Option {
	return func(o *models.Order) {
		url := "https://labels.example/" + transactionID + ".pdf"
		o.ShippingLabelURL = &url
		o.ShippingTransactionID = &transactionID
		o.TrackingNumber = &trackingNumber
		o.FulfilmentStatus = enums.FulfilmentStatusLabelCreated
	}
}

// WithPaymentIntent stores the provider payment intent id.
func WithPaymentIntent(id string) Option {
	return func(o *models.Order) {
		o.PaymentIntentID = &id
	}
}

// WithoutBuyerAddress blanks the captured delivery address.
func WithoutBuyerAddress() Option {
	return func(o *models.Order) {
		o.BuyerAddress = types.PostalAddress{}
	}
}

// Insert persists the order and returns it.
func Insert(t testing.TB, db *gorm.DB, order *models.Order) *models.Order {
	t.Helper()
	require.NoError(t, db.Create(order).Error)
	return order
}

// Reload reads the stored order back.
func Reload(t testing.TB, db *gorm.DB, id uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", id).Error)
	return &order
}

// InsertProfile stores a profile with the given address and returns it.
func InsertProfile(t testing.TB, db *gorm.DB, id uuid.UUID, email string, address types.PostalAddress) *models.Profile {
	t.Helper()
	profile := &models.Profile{ID: id, Email: email, FullName: address.Name, Address: address}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

// InsertListing stores an active listing owned by sellerID.
func InsertListing(t testing.TB, db *gorm.DB, id, sellerID uuid.UUID, preset *enums.SizePreset) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		ID:         id,
		SellerID:   sellerID,
		Title:      "Scotty Cameron Newport 2",
		Status:     enums.ListingStatusActive,
		SizePreset: preset,
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}
