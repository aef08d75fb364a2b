package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/teevo/fulfilment-backend/internal/users"
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	"github.com/teevo/fulfilment-backend/pkg/logger"
)

type contactResolver interface {
	Contact(ctx context.Context, userID uuid.UUID) (*users.Contact, error)
}

type titleResolver interface {
	Title(ctx context.Context, listingID uuid.UUID) (string, error)
}

type ensurer interface {
	EnsureSent(ctx context.Context, email Email) (bool, error)
}

// OrderNotifier turns order transitions into ledger-guarded emails.
type OrderNotifier struct {
	emails     ensurer
	contacts   contactResolver
	titles     titleResolver
	adminEmail string
	logg       *logger.Logger
}

// OrderNotifierParams wires the order notifier.
type OrderNotifierParams struct {
	Dispatcher *Dispatcher
	Contacts   contactResolver
	Titles     titleResolver
	// AdminEmail receives PAYMENT_RECEIVED; empty disables that email.
	AdminEmail string
	Logger     *logger.Logger
}

// NewOrderNotifier builds an OrderNotifier.
func NewOrderNotifier(params OrderNotifierParams) (*OrderNotifier, error) {
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if params.Contacts == nil {
		return nil, fmt.Errorf("contact resolver required")
	}
	if params.Titles == nil {
		return nil, fmt.Errorf("listing title resolver required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &OrderNotifier{
		emails:     params.Dispatcher,
		contacts:   params.Contacts,
		titles:     params.Titles,
		adminEmail: params.AdminEmail,
		logg:       logg,
	}, nil
}

// OrderPlaced sends ORDER_CONFIRMATION to the buyer, ITEM_SOLD to the seller
// and PAYMENT_RECEIVED to the operations inbox.
func (n *OrderNotifier) OrderPlaced(ctx context.Context, order *models.Order) error {
	vars := n.vars(ctx, order)
	ref := order.ID.String()
	var errs error
	errs = multierr.Append(errs, n.toUser(ctx, enums.EmailTypeOrderConfirmation, ref, order.BuyerID, vars))
	errs = multierr.Append(errs, n.toUser(ctx, enums.EmailTypeItemSold, ref, order.SellerID, vars))
	if n.adminEmail != "" {
		_, err := n.emails.EnsureSent(ctx, Email{
			Type:          enums.EmailTypePaymentReceived,
			ReferenceID:   ref,
			Recipient:     n.adminEmail,
			RecipientName: "Teevo operations",
			Vars:          vars,
		})
		errs = multierr.Append(errs, err)
	}
	return errs
}

// Shipped sends SHIPPING_CONFIRMATION to the buyer.
func (n *OrderNotifier) Shipped(ctx context.Context, order *models.Order) error {
	return n.toUser(ctx, enums.EmailTypeShippingConfirmation, order.ID.String(), order.BuyerID, n.vars(ctx, order))
}

// FundsReleased sends FUNDS_RELEASED to the seller.
func (n *OrderNotifier) FundsReleased(ctx context.Context, order *models.Order) error {
	return n.toUser(ctx, enums.EmailTypeFundsReleased, order.ID.String(), order.SellerID, n.vars(ctx, order))
}

// PackagingReviewed tells the seller the outcome of an admin review. Each
// submission is reviewed once, so the reference carries the submission number.
func (n *OrderNotifier) PackagingReviewed(ctx context.Context, order *models.Order) error {
	if order.PackagingReviewStatus == nil {
		return nil
	}
	emailType := enums.EmailTypePackagingVerified
	if *order.PackagingReviewStatus == enums.PackagingReviewStatusRejected {
		emailType = enums.EmailTypePackagingRejected
	}
	ref := fmt.Sprintf("%s:%d", order.ID, order.PackagingSubmissionCount)
	return n.toUser(ctx, emailType, ref, order.SellerID, n.vars(ctx, order))
}

func (n *OrderNotifier) toUser(ctx context.Context, emailType enums.EmailType, ref string, userID uuid.UUID, vars Vars) error {
	contact, err := n.contacts.Contact(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve %s recipient: %w", emailType, err)
	}
	vars.RecipientName = contact.Name
	_, err = n.emails.EnsureSent(ctx, Email{
		Type:          emailType,
		ReferenceID:   ref,
		Recipient:     contact.Email,
		RecipientName: contact.Name,
		Vars:          vars,
	})
	return err
}

func (n *OrderNotifier) vars(ctx context.Context, order *models.Order) Vars {
	title, err := n.titles.Title(ctx, order.ListingID)
	if err != nil {
		n.logg.Warn(n.logg.WithField(ctx, "listing_id", order.ListingID.String()), "listing title unavailable for email")
		title = "your item"
	}
	vars := Vars{
		OrderID:          order.ID.String(),
		ListingTitle:     title,
		AmountMinorUnits: order.AmountMinorUnits,
		Currency:         order.Currency,
		BoxFeeMinorUnits: order.BoxFeeMinorUnits,
	}
	if order.TrackingNumber != nil {
		vars.TrackingNumber = *order.TrackingNumber
	}
	if order.PackagingReviewNotes != nil {
		vars.ReviewNotes = *order.PackagingReviewNotes
	}
	return vars
}
