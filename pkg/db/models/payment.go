package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/kelvinmwangi/farmconnect-backend/pkg/db/types"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

// Payment covers both directions of money movement: a market's inbound
// payment for an order (method card/mobile_money) and the outbound payout
// rows written on delivery (method payout, one of FarmerID/TransporterID
// set). Gateway references live in Metadata under stripe_session_id and
// stripe_payment_intent_id.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	MarketID      *uuid.UUID          `gorm:"column:market_id;type:uuid"`
	FarmerID      *uuid.UUID          `gorm:"column:farmer_id;type:uuid"`
	TransporterID *uuid.UUID          `gorm:"column:transporter_id;type:uuid"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      enums.Currency      `gorm:"column:currency;type:text;not null;default:'KES'"`
	Method        enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'unpaid'"`
	Metadata      dbtypes.JSONMap     `gorm:"column:metadata;type:jsonb;not null"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

// Metadata keys recognised by the reconciliation and payout paths.
const (
	MetaStripeSessionID       = "stripe_session_id"
	MetaStripePaymentIntentID = "stripe_payment_intent_id"
	MetaPayoutRecipientType   = "recipient_type"
)

// StripeSessionID returns the checkout session reference, if recorded.
func (p Payment) StripeSessionID() (string, bool) {
	return p.Metadata.GetString(MetaStripeSessionID)
}
