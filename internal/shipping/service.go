package shipping

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/teevo/fulfilment-backend/internal/orders"
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/metrics"
	"github.com/teevo/fulfilment-backend/pkg/shippo"
	"github.com/teevo/fulfilment-backend/pkg/types"
)

const (
	providerName   = "shippo"
	lockScope      = "label"
	defaultLockTTL = 90 * time.Second
)

// Provider is the label-buying surface of the shipping provider.
type Provider interface {
	CreateShipment(ctx context.Context, req shippo.ShipmentRequest) (*shippo.Shipment, error)
	PurchaseLabel(ctx context.Context, rateID string) (*shippo.Transaction, error)
}

type locker interface {
	TryLock(ctx context.Context, scope, id string, ttl time.Duration) (bool, func(context.Context), error)
}

type originLookup interface {
	ShippingOrigin(ctx context.Context, sellerID uuid.UUID) (types.PostalAddress, error)
}

type presetLookup interface {
	SizePreset(ctx context.Context, listingID uuid.UUID) (*enums.SizePreset, error)
}

type ServiceParams struct {
	Engine          orders.Service
	Provider        Provider
	Origins         originLookup
	Listings        presetLookup
	Locks           locker
	AllowedServices []string
	LockTTL         time.Duration
	Metrics         *metrics.FulfilmentMetrics
	Logger          *logger.Logger
}

// Service issues shipping labels for verified orders.
type Service struct {
	engine   orders.Service
	provider Provider
	origins  originLookup
	listings presetLookup
	locks    locker
	allowed  AllowList
	lockTTL  time.Duration
	metrics  *metrics.FulfilmentMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Engine == nil {
		return nil, fmt.Errorf("order engine required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("shipping provider required")
	}
	if params.Origins == nil {
		return nil, fmt.Errorf("origin lookup required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listing lookup required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock client required")
	}
	allowed := NewAllowList(params.AllowedServices)
	if len(allowed) == 0 {
		return nil, fmt.Errorf("at least one allowed shipping service required")
	}
	ttl := params.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		engine:   params.Engine,
		provider: params.Provider,
		origins:  params.Origins,
		listings: params.Listings,
		locks:    params.Locks,
		allowed:  allowed,
		lockTTL:  ttl,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// CreateLabel buys a label for the order and advances it to LABEL_CREATED.
// Every precondition is checked before the provider is contacted. The call is
// not idempotent against the provider, so a failure after purchase can leave
// a stray shipment there.
func (s *Service) CreateLabel(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	acquired, release, err := s.locks.TryLock(ctx, lockScope, orderID.String(), s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire label lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "label creation already in progress for this order")
	}
	defer release(context.WithoutCancel(ctx))

	pre, err := s.engine.Preflight(ctx, s.command(actor, orderID, nil))
	if err != nil {
		return nil, err
	}
	order := pre.Order

	from, err := s.origins.ShippingOrigin(ctx, order.SellerID)
	if err != nil {
		return nil, err
	}
	to := order.BuyerAddress.Normalize()
	if missing := to.MissingFields(); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "order has no complete delivery address and must be repaired before a label can be created").
			WithDetails(map[string]any{"missing_fields": missing})
	}

	preset, err := s.listings.SizePreset(ctx, order.ListingID)
	if err != nil {
		s.logg.Warn(ctx, "size preset unavailable, using small parcel")
	}

	shipment, err := s.createShipment(ctx, shippo.ShipmentRequest{
		From:   toShippoAddress(from),
		To:     toShippoAddress(to),
		Parcel: ParcelFor(preset),
	})
	if err != nil {
		return nil, err
	}
	rate, err := s.selectRate(shipment)
	if err != nil {
		return nil, err
	}
	txn, err := s.purchase(ctx, rate)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Apply(ctx, s.command(actor, orderID, &label{rate: rate, txn: txn}))
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "shipping_transaction_id", txn.ObjectID), "label purchased but order not updated", err)
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "service_level", rate.ServiceLevel.Token), "shipping label created")
	return res.Order, nil
}

type label struct {
	rate shippo.Rate
	txn  *shippo.Transaction
}

func (s *Service) command(actor orders.Actor, orderID uuid.UUID, l *label) orders.Command {
	cmd := orders.Command{
		OrderID: orderID,
		Action:  enums.OrderActionCreateLabel,
		Actor:   actor,
		Guard: func(o *models.Order) error {
			if o.HasLabel() {
				return orders.StateConflict(enums.OrderActionCreateLabel, o, "shipping label already created")
			}
			return nil
		},
	}
	if l == nil {
		return cmd
	}
	cmd.Mutate = func(o *models.Order, _ time.Time) error {
		o.ShippingLabelURL = optional(l.txn.LabelURL)
		o.ShippingQRCodeURL = optional(l.txn.QRCodeURL)
		o.TrackingNumber = optional(l.txn.TrackingNumber)
		o.ShippingTransactionID = optional(l.txn.ObjectID)
		o.ShippingServiceToken = optional(l.rate.ServiceLevel.Token)
		return nil
	}
	cmd.Data = map[string]any{
		"shipping_transaction_id": l.txn.ObjectID,
		"tracking_number":         l.txn.TrackingNumber,
		"service_level":           l.rate.ServiceLevel.Token,
		"rate_amount":             l.rate.Amount,
		"rate_currency":           l.rate.Currency,
	}
	return cmd
}

func (s *Service) createShipment(ctx context.Context, req shippo.ShipmentRequest) (*shippo.Shipment, error) {
	start := time.Now()
	shipment, err := s.provider.CreateShipment(ctx, req)
	s.metrics.ObserveProviderCall(providerName, "create_shipment", time.Since(start), err)
	if err != nil {
		return nil, providerError(err, "create shipment")
	}
	return shipment, nil
}

func (s *Service) purchase(ctx context.Context, rate shippo.Rate) (*shippo.Transaction, error) {
	start := time.Now()
	txn, err := s.provider.PurchaseLabel(ctx, rate.ObjectID)
	s.metrics.ObserveProviderCall(providerName, "purchase_label", time.Since(start), err)
	if err == nil {
		return txn, nil
	}
	if txn != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderRejected, err, "shipping provider did not issue a label").
			WithDetails(map[string]any{"transaction_status": txn.Status, "service_level": rate.ServiceLevel.Token})
	}
	return nil, providerError(err, "purchase label")
}

// selectRate picks the most preferred allowed service, cheapest first within
// a service. Services outside the allow-list are never bought.
func (s *Service) selectRate(shipment *shippo.Shipment) (shippo.Rate, error) {
	if shipment == nil || len(shipment.Rates) == 0 {
		return shippo.Rate{}, pkgerrors.New(pkgerrors.CodeProviderRejected,
			"shipping provider returned no rates; check the carrier accounts on the Shippo account and both addresses")
	}
	candidates := make([]shippo.Rate, 0, len(shipment.Rates))
	offered := make([]string, 0, len(shipment.Rates))
	for _, r := range shipment.Rates {
		offered = append(offered, r.ServiceLevel.Token)
		if s.allowed.rank(r.ServiceLevel.Token) >= 0 {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return shippo.Rate{}, pkgerrors.New(pkgerrors.CodeProviderRejected,
			"no allowed shipping service offered; check the Shippo carrier accounts and the allowed service configuration").
			WithDetails(map[string]any{"allowed": []string(s.allowed), "offered": offered})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := s.allowed.rank(candidates[i].ServiceLevel.Token), s.allowed.rank(candidates[j].ServiceLevel.Token)
		if ri != rj {
			return ri < rj
		}
		return rateAmount(candidates[i]).LessThan(rateAmount(candidates[j]))
	})
	return candidates[0], nil
}

func rateAmount(r shippo.Rate) decimal.Decimal {
	d, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return decimal.New(1, 9)
	}
	return d
}

// providerError maps client-side rejections to a permanent error and
// everything else, including throttling, to a retryable one.
func providerError(err error, op string) error {
	var apiErr *shippo.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
		return pkgerrors.Wrap(pkgerrors.CodeProviderRejected, err, "shipping provider rejected "+op).
			WithDetails(map[string]any{"provider_status": apiErr.StatusCode})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func toShippoAddress(a types.PostalAddress) shippo.Address {
	return shippo.Address{
		Name:    a.Name,
		Street1: a.Line1,
		Street2: a.Line2,
		City:    a.City,
		Zip:     a.Postcode,
		Country: a.Country,
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
