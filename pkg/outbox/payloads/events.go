package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order placed by a market.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	FarmerID    uuid.UUID       `json:"farmer_id"`
	MarketID    uuid.UUID       `json:"market_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    enums.Currency  `json:"currency"`
}

// OrderStateChangedEvent is emitted on every accepted lifecycle transition.
type OrderStateChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	FarmerID   uuid.UUID         `json:"farmer_id"`
	MarketID   uuid.UUID         `json:"market_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedAt  time.Time         `json:"changed_at"`
	Note       string            `json:"note,omitempty"`
}

// OrderCancelledEvent is emitted whenever a pending order is cancelled.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	FarmerID    uuid.UUID `json:"farmer_id"`
	MarketID    uuid.UUID `json:"market_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderDeliveredEvent carries everything the payout worker needs to split
// the settled amount, so the consumer never re-reads order state.
type OrderDeliveredEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	FarmerID      uuid.UUID       `json:"farmer_id"`
	MarketID      uuid.UUID       `json:"market_id"`
	TransporterID *uuid.UUID      `json:"transporter_id,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TransportCost decimal.Decimal `json:"transport_cost"`
	Currency      enums.Currency  `json:"currency"`
	DeliveredAt   time.Time       `json:"delivered_at"`
}

// PaymentSettledEvent is emitted when an order payment flips to paid.
type PaymentSettledEvent struct {
	PaymentID uuid.UUID           `json:"payment_id"`
	OrderID   uuid.UUID           `json:"order_id"`
	Amount    decimal.Decimal     `json:"amount"`
	Currency  enums.Currency      `json:"currency"`
	Method    enums.PaymentMethod `json:"method"`
	PaidAt    time.Time           `json:"paid_at"`
}

// InvoiceIssuedEvent mirrors the invoice created alongside a settled payment.
type InvoiceIssuedEvent struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	OrderID   uuid.UUID       `json:"order_id"`
	PaymentID uuid.UUID       `json:"payment_id"`
	Number    string          `json:"number"`
	Amount    decimal.Decimal `json:"amount"`
	IssuedAt  time.Time       `json:"issued_at"`
}

// PayoutRecordedEvent reports one payout row written on delivery.
type PayoutRecordedEvent struct {
	PaymentID     uuid.UUID           `json:"payment_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	RecipientID   uuid.UUID           `json:"recipient_id"`
	RecipientType enums.RecipientType `json:"recipient_type"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
}
