package orders

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	"github.com/teevo/fulfilment-backend/pkg/types"
)

// OrderView is the order as returned to buyers, sellers and admins.
type OrderView struct {
	ID               uuid.UUID              `json:"id"`
	ListingID        uuid.UUID              `json:"listing_id"`
	BuyerID          uuid.UUID              `json:"buyer_id"`
	SellerID         uuid.UUID              `json:"seller_id"`
	Amount           string                 `json:"amount"`
	AmountMinorUnits int64                  `json:"amount_minor_units"`
	Currency         string                 `json:"currency"`
	SaleStatus       enums.SaleStatus       `json:"sale_status"`
	FulfilmentStatus enums.FulfilmentStatus `json:"fulfilment_status"`
	Packaging        PackagingView          `json:"packaging"`
	Label            *LabelView             `json:"label,omitempty"`
	BuyerAddress     types.PostalAddress    `json:"buyer_address"`
	ShippedAt        *time.Time             `json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time             `json:"delivered_at,omitempty"`
	CompletedAt      *time.Time             `json:"completed_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

type PackagingView struct {
	Choice          *enums.PackagingChoice       `json:"choice"`
	BoxType         *enums.BoxType               `json:"box_type,omitempty"`
	BoxFee          *string                      `json:"box_fee,omitempty"`
	PhotoPaths      []string                     `json:"photo_paths"`
	ReviewStatus    *enums.PackagingReviewStatus `json:"review_status"`
	ReviewNotes     *string                      `json:"review_notes,omitempty"`
	SubmissionCount int                          `json:"submission_count"`
}

type LabelView struct {
	URL            *string `json:"url"`
	QRCodeURL      *string `json:"qr_code_url,omitempty"`
	TrackingNumber *string `json:"tracking_number"`
	TransactionID  *string `json:"transaction_id"`
	Service        *string `json:"service,omitempty"`
}

// EventView is one row of an order's transition history.
type EventView struct {
	ID             uuid.UUID               `json:"id"`
	Action         enums.OrderAction       `json:"action"`
	Source         enums.OrderEventSource  `json:"source"`
	ActorID        *uuid.UUID              `json:"actor_id,omitempty"`
	FromFulfilment enums.FulfilmentStatus  `json:"from_fulfilment_status"`
	ToFulfilment   enums.FulfilmentStatus  `json:"to_fulfilment_status"`
	FromSale       enums.SaleStatus        `json:"from_sale_status"`
	ToSale         enums.SaleStatus        `json:"to_sale_status"`
	Data           json.RawMessage         `json:"data,omitempty"`
	OccurredAt     time.Time               `json:"occurred_at"`
}

func NewOrderView(o *models.Order) OrderView {
	view := OrderView{
		ID:               o.ID,
		ListingID:        o.ListingID,
		BuyerID:          o.BuyerID,
		SellerID:         o.SellerID,
		Amount:           formatMinor(o.AmountMinorUnits),
		AmountMinorUnits: o.AmountMinorUnits,
		Currency:         strings.ToUpper(o.Currency),
		SaleStatus:       o.SaleStatus,
		FulfilmentStatus: o.FulfilmentStatus,
		Packaging: PackagingView{
			Choice:          o.ShippingPackageChoice,
			BoxType:         o.BoxType,
			PhotoPaths:      o.PackagingPhotoPaths,
			ReviewStatus:    o.PackagingReviewStatus,
			ReviewNotes:     o.PackagingReviewNotes,
			SubmissionCount: o.PackagingSubmissionCount,
		},
		BuyerAddress: o.BuyerAddress,
		ShippedAt:    o.ShippedAt,
		DeliveredAt:  o.DeliveredAt,
		CompletedAt:  o.CompletedAt,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if view.Packaging.PhotoPaths == nil {
		view.Packaging.PhotoPaths = []string{}
	}
	if o.BoxFeeMinorUnits != nil {
		fee := formatMinor(*o.BoxFeeMinorUnits)
		view.Packaging.BoxFee = &fee
	}
	if o.HasLabel() {
		view.Label = &LabelView{
			URL:            o.ShippingLabelURL,
			QRCodeURL:      o.ShippingQRCodeURL,
			TrackingNumber: o.TrackingNumber,
			TransactionID:  o.ShippingTransactionID,
			Service:        o.ShippingServiceToken,
		}
	}
	return view
}

func NewEventViews(events []models.OrderEvent) []EventView {
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, EventView{
			ID:             e.ID,
			Action:         e.Action,
			Source:         e.Source,
			ActorID:        e.ActorID,
			FromFulfilment: e.FromFulfilment,
			ToFulfilment:   e.ToFulfilment,
			FromSale:       e.FromSale,
			ToSale:         e.ToSale,
			Data:           e.Payload,
			OccurredAt:     e.CreatedAt,
		})
	}
	return out
}

func formatMinor(amount int64) string {
	return decimal.NewFromInt(amount).Shift(-2).StringFixed(2)
}
