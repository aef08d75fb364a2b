package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teevo/fulfilment-backend/pkg/enums"
	"github.com/teevo/fulfilment-backend/pkg/types"
)

// Order is the fulfilment record created once per completed payment session.
type Order struct {
	ID                       uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ListingID                uuid.UUID                    `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	BuyerID                  uuid.UUID                    `gorm:"column:buyer_id;type:uuid;not null;index" json:"buyer_id"`
	SellerID                 uuid.UUID                    `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	AmountMinorUnits         int64                        `gorm:"column:amount_minor_units;not null" json:"amount_minor_units"`
	Currency                 string                       `gorm:"column:currency;type:text;not null" json:"currency"`
	PaymentReference         string                       `gorm:"column:payment_reference;type:text;not null;uniqueIndex:ux_orders_payment_reference" json:"payment_reference"`
	PaymentIntentID          *string                      `gorm:"column:payment_intent_id;type:text;index" json:"payment_intent_id,omitempty"`
	SaleStatus               enums.SaleStatus             `gorm:"column:sale_status;type:text;not null" json:"sale_status"`
	FulfilmentStatus         enums.FulfilmentStatus       `gorm:"column:fulfilment_status;type:text;not null" json:"fulfilment_status"`
	ShippingPackageChoice    *enums.PackagingChoice       `gorm:"column:shipping_package_choice;type:text" json:"shipping_package_choice"`
	BoxType                  *enums.BoxType               `gorm:"column:box_type;type:text" json:"box_type"`
	BoxFeeMinorUnits         *int64                       `gorm:"column:box_fee_minor_units" json:"box_fee_minor_units"`
	PackagingPhotoPaths      []string                     `gorm:"column:packaging_photo_paths;type:jsonb;serializer:json" json:"packaging_photo_paths"`
	PackagingReviewStatus    *enums.PackagingReviewStatus `gorm:"column:packaging_review_status;type:text" json:"packaging_review_status"`
	PackagingReviewNotes     *string                      `gorm:"column:packaging_review_notes;type:text" json:"packaging_review_notes"`
	PackagingSubmissionCount int                          `gorm:"column:packaging_submission_count;not null;default:0" json:"packaging_submission_count"`
	ShippingLabelURL         *string                      `gorm:"column:shipping_label_url;type:text" json:"shipping_label_url"`
	ShippingQRCodeURL        *string                      `gorm:"column:shipping_qr_code_url;type:text" json:"shipping_qr_code_url,omitempty"`
	TrackingNumber           *string                      `gorm:"column:tracking_number;type:text;index" json:"tracking_number"`
	ShippingTransactionID    *string                      `gorm:"column:shipping_transaction_id;type:text;index" json:"shipping_transaction_id"`
	ShippingServiceToken     *string                      `gorm:"column:shipping_service_token;type:text" json:"shipping_service_token,omitempty"`
	BuyerAddress             types.PostalAddress          `gorm:"embedded;embeddedPrefix:buyer_address_" json:"buyer_address"`
	ShippedAt                *time.Time                   `gorm:"column:shipped_at" json:"shipped_at"`
	DeliveredAt              *time.Time                   `gorm:"column:delivered_at" json:"delivered_at"`
	CompletedAt              *time.Time                   `gorm:"column:completed_at" json:"completed_at"`
	Version                  int64                        `gorm:"column:version;not null;default:1" json:"-"`
	CreatedAt                time.Time                    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time                    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns an id so the row can be created on stores without uuid defaults.
func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}

// HasLabel reports whether a shipping label was already purchased for the order.
func (o *Order) HasLabel() bool {
	return o.ShippingLabelURL != nil || o.ShippingTransactionID != nil
}
