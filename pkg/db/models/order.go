package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/kelvinmwangi/farmconnect-backend/pkg/db/types"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

// Order is a market's purchase from a farmer, optionally assigned a
// transporter. Revision backs the compare-and-swap used by status
// transitions; StatusHistory is the append-only lifecycle trail.
type Order struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmerID      uuid.UUID             `gorm:"column:farmer_id;type:uuid;not null"`
	MarketID      uuid.UUID             `gorm:"column:market_id;type:uuid;not null"`
	TransporterID *uuid.UUID            `gorm:"column:transporter_id;type:uuid"`
	Status        enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'pending'"`
	StatusHistory dbtypes.StatusHistory `gorm:"column:status_history;type:jsonb;not null"`
	Revision      int64                 `gorm:"column:revision;not null;default:0"`
	TotalAmount   decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TransportCost decimal.Decimal       `gorm:"column:transport_cost;type:numeric(12,2);not null;default:0"`
	DistanceKm    decimal.Decimal       `gorm:"column:distance_km;type:numeric(8,2);not null;default:0"`
	Currency      enums.Currency        `gorm:"column:currency;type:text;not null;default:'KES'"`
	DeliveryNote  *string               `gorm:"column:delivery_note"`
	DeliveredAt   *time.Time            `gorm:"column:delivered_at"`
	CancelledAt   *time.Time            `gorm:"column:cancelled_at"`
	Items         []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
