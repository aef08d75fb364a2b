package stripe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
)

// CheckoutSessions looks up checkout sessions for the confirmation poll.
type CheckoutSessions interface {
	Get(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
}

type checkoutSessions struct {
	timeout time.Duration
}

// NewCheckoutSessions returns a session reader bound to the initialized client.
func NewCheckoutSessions(client *Client) CheckoutSessions {
	if client == nil {
		return nil
	}
	return &checkoutSessions{timeout: client.Timeout()}
}

func (c *checkoutSessions) Get(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("checkout session id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	return session.Get(sessionID, params)
}
