package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transporter is a logistics profile carrying the rate card used by the
// transport quote calculator.
type Transporter struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                 string          `gorm:"column:name;not null"`
	Email                string          `gorm:"column:email;not null;uniqueIndex"`
	Phone                *string         `gorm:"column:phone"`
	VehicleType          *string         `gorm:"column:vehicle_type"`
	BaseRate             decimal.Decimal `gorm:"column:base_rate;type:numeric(12,2);not null"`
	PerKmRate            decimal.Decimal `gorm:"column:per_km_rate;type:numeric(12,2);not null"`
	RefrigerationPremium decimal.Decimal `gorm:"column:refrigeration_premium;type:numeric(12,2);not null;default:0"`
	HasRefrigeration     bool            `gorm:"column:has_refrigeration;not null;default:false"`
	IsAvailable          bool            `gorm:"column:is_available;not null;default:true"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Transporter) TableName() string { return "transporters" }
