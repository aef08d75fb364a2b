package payments

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/types"
)

var (
	listingIDKeys = []string{"listing_id", "listingId"}
	buyerIDKeys   = []string{"buyer_id", "buyerId"}
	sellerIDKeys  = []string{"seller_id", "sellerId"}
)

// HandleEvent routes a verified Stripe event. Unhandled types are ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		if !sessionPaid(&cs) {
			// Delayed payment methods complete later with async_payment_succeeded.
			s.logg.Info(ctx, "checkout session not paid yet")
			return nil
		}
		confirmation, err := ConfirmationFromSession(&cs)
		if err != nil {
			return err
		}
		_, err = s.CreateFromPayment(ctx, confirmation)
		return err
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge")
		}
		if charge.PaymentIntent == nil {
			s.logg.Info(ctx, "refunded charge has no payment intent")
			return nil
		}
		return s.RecordRefund(ctx, charge.PaymentIntent.ID)
	case stripe.EventTypeChargeDisputeCreated:
		var dispute stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode dispute")
		}
		if dispute.PaymentIntent == nil {
			s.logg.Info(ctx, "dispute has no payment intent")
			return nil
		}
		return s.RecordDispute(ctx, dispute.PaymentIntent.ID)
	default:
		return nil
	}
}

// ConfirmSession is the buyer's poll fallback after the checkout redirect. It
// shares CreateFromPayment with the webhook so either may win.
func (s *Service) ConfirmSession(ctx context.Context, buyerID uuid.UUID, sessionID string) (*CreateResult, error) {
	if s.sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout session lookup unavailable")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	cs, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}
	confirmation, err := ConfirmationFromSession(cs)
	if err != nil {
		return nil, err
	}
	if confirmation.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout session belongs to another buyer")
	}
	if !sessionPaid(cs) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed yet").
			WithDetails(map[string]any{"payment_status": string(cs.PaymentStatus)})
	}
	return s.CreateFromPayment(ctx, confirmation)
}

// ConfirmationFromSession maps a checkout session and its metadata onto a
// payment confirmation. Missing ids are a permanent validation failure.
func ConfirmationFromSession(cs *stripe.CheckoutSession) (PaymentConfirmation, error) {
	if cs == nil {
		return PaymentConfirmation{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session required")
	}
	confirmation := PaymentConfirmation{
		PaymentReference: cs.ID,
		AmountMinorUnits: cs.AmountTotal,
		Currency:         string(cs.Currency),
		BuyerAddress:     sessionAddress(cs),
	}
	if cs.PaymentIntent != nil {
		confirmation.PaymentIntentID = cs.PaymentIntent.ID
	}

	var invalid []string
	parse := func(keys []string, dst *uuid.UUID) {
		raw := metadataValue(cs.Metadata, keys)
		if raw == "" {
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			invalid = append(invalid, keys[0])
			return
		}
		*dst = id
	}
	parse(listingIDKeys, &confirmation.ListingID)
	parse(buyerIDKeys, &confirmation.BuyerID)
	parse(sellerIDKeys, &confirmation.SellerID)
	if len(invalid) > 0 {
		return PaymentConfirmation{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment metadata").
			WithDetails(map[string]any{"invalid_fields": invalid})
	}
	if err := confirmation.validate(); err != nil {
		return PaymentConfirmation{}, err
	}
	return confirmation, nil
}

func sessionPaid(cs *stripe.CheckoutSession) bool {
	return cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
}

func metadataValue(metadata map[string]string, keys []string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(metadata[key]); v != "" {
			return v
		}
	}
	return ""
}

func sessionAddress(cs *stripe.CheckoutSession) types.PostalAddress {
	var (
		addr *stripe.Address
		name string
	)
	if cs.CollectedInformation != nil && cs.CollectedInformation.ShippingDetails != nil {
		addr = cs.CollectedInformation.ShippingDetails.Address
		name = cs.CollectedInformation.ShippingDetails.Name
	}
	if cs.CustomerDetails != nil {
		if addr == nil {
			addr = cs.CustomerDetails.Address
		}
		if name == "" {
			name = cs.CustomerDetails.Name
		}
	}
	if addr == nil {
		return types.PostalAddress{Name: name}
	}
	return types.PostalAddress{
		Name:     name,
		Line1:    addr.Line1,
		Line2:    addr.Line2,
		City:     addr.City,
		Postcode: addr.PostalCode,
		Country:  addr.Country,
	}.Normalize()
}
