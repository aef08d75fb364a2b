package orders

import (
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
)

// Transition describes one action of the fulfilment state machine.
//
// From lists the fulfilment statuses the action may start from; nil means any.
// To is the resulting fulfilment status; empty leaves it unchanged.
// NoopAt lists statuses at which a repeat of the action by one of NoopRoles
// succeeds without writing, so redelivered provider events stay harmless.
// SaleFrom restricts the sale status per role. SaleTo is applied only while the
// current sale status is listed in SaleAdvanceFrom; disputes are never overwritten.
// Hold, when set, keeps the fulfilment status of the stored order unchanged.
type Transition struct {
	Action          enums.OrderAction
	From            []enums.FulfilmentStatus
	To              enums.FulfilmentStatus
	Roles           []Role
	NoopAt          []enums.FulfilmentStatus
	NoopRoles       []Role
	NoopOnSale      []enums.SaleStatus
	SaleFrom        map[Role][]enums.SaleStatus
	SaleTo          enums.SaleStatus
	SaleAdvanceFrom []enums.SaleStatus
	Hold            func(stored *models.Order) bool
}

var preShipment = []enums.FulfilmentStatus{
	enums.FulfilmentStatusPaid,
	enums.FulfilmentStatusPackagingSubmitted,
	enums.FulfilmentStatusPackagingVerified,
	enums.FulfilmentStatusLabelCreated,
}

var transitions = map[enums.OrderAction]Transition{
	enums.OrderActionChoosePackaging: {
		Action: enums.OrderActionChoosePackaging,
		From:   []enums.FulfilmentStatus{enums.FulfilmentStatusPaid},
		To:     enums.FulfilmentStatusPackagingSubmitted,
		Roles:  []Role{RoleSeller},
	},
	enums.OrderActionSubmitPhotos: {
		Action: enums.OrderActionSubmitPhotos,
		From: []enums.FulfilmentStatus{
			enums.FulfilmentStatusPackagingSubmitted,
			enums.FulfilmentStatusPackagingVerified,
		},
		To:    enums.FulfilmentStatusPackagingSubmitted,
		Roles: []Role{RoleSeller},
		// Only an explicit reject sends a seller-verified order back to review.
		Hold: func(stored *models.Order) bool {
			return stored.FulfilmentStatus == enums.FulfilmentStatusPackagingVerified &&
				(stored.PackagingReviewStatus == nil || *stored.PackagingReviewStatus != enums.PackagingReviewStatusRejected)
		},
	},
	// Label issuance checks only the fulfilment status, which this seller step
	// sets on its own. Admin photo review does not gate it.
	enums.OrderActionSellerVerifyPackaging: {
		Action: enums.OrderActionSellerVerifyPackaging,
		From:   []enums.FulfilmentStatus{enums.FulfilmentStatusPackagingSubmitted},
		To:     enums.FulfilmentStatusPackagingVerified,
		Roles:  []Role{RoleSeller},
	},
	enums.OrderActionAdminVerifyPackaging: {
		Action: enums.OrderActionAdminVerifyPackaging,
		From: []enums.FulfilmentStatus{
			enums.FulfilmentStatusPackagingSubmitted,
			enums.FulfilmentStatusPackagingVerified,
		},
		Roles: []Role{RoleAdmin},
	},
	enums.OrderActionAdminRejectPackaging: {
		Action: enums.OrderActionAdminRejectPackaging,
		From: []enums.FulfilmentStatus{
			enums.FulfilmentStatusPackagingSubmitted,
			enums.FulfilmentStatusPackagingVerified,
		},
		Roles: []Role{RoleAdmin},
	},
	enums.OrderActionCreateLabel: {
		Action: enums.OrderActionCreateLabel,
		From:   []enums.FulfilmentStatus{enums.FulfilmentStatusPackagingVerified},
		To:     enums.FulfilmentStatusLabelCreated,
		Roles:  []Role{RoleSeller},
	},
	enums.OrderActionMarkShipped: {
		Action: enums.OrderActionMarkShipped,
		From:   preShipment,
		To:     enums.FulfilmentStatusShipped,
		Roles:  []Role{RoleSeller, RoleCarrier},
		NoopAt: []enums.FulfilmentStatus{
			enums.FulfilmentStatusShipped,
			enums.FulfilmentStatusDelivered,
			enums.FulfilmentStatusCompleted,
		},
		NoopRoles:       []Role{RoleCarrier},
		SaleFrom:        map[Role][]enums.SaleStatus{RoleSeller: {enums.SaleStatusPending}},
		SaleTo:          enums.SaleStatusShipped,
		SaleAdvanceFrom: []enums.SaleStatus{enums.SaleStatusPending},
	},
	enums.OrderActionMarkDelivered: {
		Action: enums.OrderActionMarkDelivered,
		From: []enums.FulfilmentStatus{
			enums.FulfilmentStatusLabelCreated,
			enums.FulfilmentStatusShipped,
		},
		To:    enums.FulfilmentStatusDelivered,
		Roles: []Role{RoleCarrier},
		NoopAt: []enums.FulfilmentStatus{
			enums.FulfilmentStatusDelivered,
			enums.FulfilmentStatusCompleted,
		},
		NoopRoles: []Role{RoleCarrier},
		// Only moves the sale when the in-transit event never arrived.
		SaleTo:          enums.SaleStatusShipped,
		SaleAdvanceFrom: []enums.SaleStatus{enums.SaleStatusPending},
	},
	enums.OrderActionConfirmReceipt: {
		Action: enums.OrderActionConfirmReceipt,
		From: []enums.FulfilmentStatus{
			enums.FulfilmentStatusShipped,
			enums.FulfilmentStatusDelivered,
		},
		To:              enums.FulfilmentStatusCompleted,
		Roles:           []Role{RoleBuyer},
		SaleFrom:        map[Role][]enums.SaleStatus{RoleBuyer: {enums.SaleStatusShipped}},
		SaleTo:          enums.SaleStatusComplete,
		SaleAdvanceFrom: []enums.SaleStatus{enums.SaleStatusShipped},
	},
	enums.OrderActionOpenDispute: {
		Action:     enums.OrderActionOpenDispute,
		Roles:      []Role{RolePaymentProvider},
		NoopRoles:  []Role{RolePaymentProvider},
		NoopOnSale: []enums.SaleStatus{enums.SaleStatusDispute, enums.SaleStatusRefunded},
		SaleTo:     enums.SaleStatusDispute,
		SaleAdvanceFrom: []enums.SaleStatus{
			enums.SaleStatusPending,
			enums.SaleStatusShipped,
			enums.SaleStatusComplete,
		},
	},
	enums.OrderActionRefund: {
		Action:     enums.OrderActionRefund,
		Roles:      []Role{RolePaymentProvider},
		NoopRoles:  []Role{RolePaymentProvider},
		NoopOnSale: []enums.SaleStatus{enums.SaleStatusRefunded},
		SaleTo:     enums.SaleStatusRefunded,
		SaleAdvanceFrom: []enums.SaleStatus{
			enums.SaleStatusPending,
			enums.SaleStatusShipped,
			enums.SaleStatusComplete,
			enums.SaleStatusDispute,
		},
	},
}

// Lookup returns the transition registered for action.
func Lookup(action enums.OrderAction) (Transition, bool) {
	t, ok := transitions[action]
	return t, ok
}

// resolveRole returns the first listed role the actor holds on order.
func (t Transition) resolveRole(actor Actor, order *models.Order) (Role, bool) {
	for _, role := range t.Roles {
		if actor.Holds(order, role) {
			return role, true
		}
	}
	return "", false
}

func (t Transition) isNoop(role Role, order *models.Order) bool {
	if !containsRole(t.NoopRoles, role) {
		return false
	}
	if len(t.NoopOnSale) > 0 && containsSale(t.NoopOnSale, order.SaleStatus) {
		return true
	}
	return containsFulfilment(t.NoopAt, order.FulfilmentStatus)
}

func (t Transition) allowsFrom(status enums.FulfilmentStatus) bool {
	return t.From == nil || containsFulfilment(t.From, status)
}

func (t Transition) allowsSale(role Role, status enums.SaleStatus) bool {
	required, ok := t.SaleFrom[role]
	return !ok || containsSale(required, status)
}

// nextSale returns the sale status after the transition.
func (t Transition) nextSale(current enums.SaleStatus) enums.SaleStatus {
	if t.SaleTo != "" && containsSale(t.SaleAdvanceFrom, current) {
		return t.SaleTo
	}
	return current
}

// nextFulfilment returns the fulfilment status after the transition.
func (t Transition) nextFulfilment(stored *models.Order) enums.FulfilmentStatus {
	if t.To == "" || (t.Hold != nil && t.Hold(stored)) {
		return stored.FulfilmentStatus
	}
	return t.To
}

func containsRole(list []Role, v Role) bool {
	for _, candidate := range list {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsSale(list []enums.SaleStatus, v enums.SaleStatus) bool {
	for _, candidate := range list {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsFulfilment(list []enums.FulfilmentStatus, v enums.FulfilmentStatus) bool {
	for _, candidate := range list {
		if candidate == v {
			return true
		}
	}
	return false
}
