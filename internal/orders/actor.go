package orders

import (
	"github.com/google/uuid"

	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
)

// Role is the capacity in which an actor acts on a specific order.
type Role string

const (
	RoleBuyer           Role = "buyer"
	RoleSeller          Role = "seller"
	RoleAdmin           Role = "admin"
	RolePaymentProvider Role = "payment_provider"
	RoleCarrier         Role = "carrier"
)

// Source maps the role to the history source recorded for its transitions.
func (r Role) Source() enums.OrderEventSource {
	switch r {
	case RoleBuyer:
		return enums.OrderEventSourceBuyer
	case RoleSeller:
		return enums.OrderEventSourceSeller
	case RoleAdmin:
		return enums.OrderEventSourceAdmin
	case RolePaymentProvider:
		return enums.OrderEventSourcePayment
	default:
		return enums.OrderEventSourceCarrier
	}
}

// Actor is the resolved caller of a transition. Users carry an id and an admin
// capability taken from their token; providers are identified by System.
type Actor struct {
	UserID uuid.UUID
	Admin  bool
	System Role
}

// UserActor builds the actor for an authenticated user.
func UserActor(userID uuid.UUID, admin bool) Actor {
	return Actor{UserID: userID, Admin: admin}
}

// SystemActor builds the actor for an external event source.
func SystemActor(role Role) Actor {
	return Actor{System: role}
}

// IsSystem reports whether the actor is a provider rather than a user.
func (a Actor) IsSystem() bool {
	return a.System != ""
}

// Holds reports whether the actor may act as role on order.
func (a Actor) Holds(order *models.Order, role Role) bool {
	if order == nil {
		return false
	}
	if a.IsSystem() {
		return a.System == role
	}
	if a.UserID == uuid.Nil {
		return false
	}
	switch role {
	case RoleBuyer:
		return order.BuyerID == a.UserID
	case RoleSeller:
		return order.SellerID == a.UserID
	case RoleAdmin:
		return a.Admin
	}
	return false
}

// CanView reports whether the actor may read the order.
func (a Actor) CanView(order *models.Order) bool {
	return a.Holds(order, RoleBuyer) || a.Holds(order, RoleSeller) || a.Holds(order, RoleAdmin)
}

func (a Actor) actorID() *uuid.UUID {
	if a.IsSystem() || a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
