package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

// CreateCheckoutSessionInput describes a gateway session request for an order.
type CreateCheckoutSessionInput struct {
	OrderID    uuid.UUID       `json:"orderId" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	Currency   enums.Currency  `json:"currency"`
	SuccessURL string          `json:"successUrl" validate:"omitempty,url"`
	CancelURL  string          `json:"cancelUrl" validate:"omitempty,url"`
}

// CheckoutSessionResult is returned to the client for redirecting to Stripe.
type CheckoutSessionResult struct {
	URL       string `json:"url"`
	SessionID string `json:"id"`
}

// SessionStatus reports everything known about a checkout session: our
// payment row when one exists, otherwise the gateway's own view.
type SessionStatus struct {
	Status  string                  `json:"status"`
	Payment *models.Payment         `json:"payment,omitempty"`
	Session *stripe.CheckoutSession `json:"session"`
}

// ReconcileSessionInput drives the webhook reconciliation path. AllowSynthesis
// permits creating a paid payment row when the best-effort insert at checkout
// time was lost; only the checkout.session.completed handler sets it.
type ReconcileSessionInput struct {
	SessionID      string
	OrderID        *uuid.UUID
	AmountMinor    int64
	Currency       enums.Currency
	AllowSynthesis bool
}
