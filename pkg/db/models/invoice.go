package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

// Invoice is issued exactly once per settled order payment.
type Invoice struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentID uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;uniqueIndex"`
	Number    string          `gorm:"column:number;not null;uniqueIndex"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency  enums.Currency  `gorm:"column:currency;type:text;not null;default:'KES'"`
	IssuedAt  time.Time       `gorm:"column:issued_at;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Invoice) TableName() string { return "invoices" }
