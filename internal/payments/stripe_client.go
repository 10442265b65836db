package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/kelvinmwangi/farmconnect-backend/pkg/stripe"
)

// CheckoutClient exposes the subset of Stripe operations the payment service needs.
type CheckoutClient interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSession(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type checkoutClientWrapper struct{}

// NewCheckoutClient wraps the configured Stripe client so the service can be tested.
func NewCheckoutClient(api *pkgstripe.Client) CheckoutClient {
	if api == nil {
		return nil
	}
	return &checkoutClientWrapper{}
}

func (w *checkoutClientWrapper) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}

func (w *checkoutClientWrapper) GetSession(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params == nil {
		params = &stripe.CheckoutSessionParams{}
	}
	params.Context = ctx
	return session.Get(id, params)
}
