package models

import (
	"time"

	"github.com/google/uuid"
)

// Farmer is a producer profile. Farmers list produce, confirm orders and
// receive the produce share of a delivery payout.
type Farmer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	Phone     *string   `gorm:"column:phone"`
	Location  *string   `gorm:"column:location"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Farmer) TableName() string { return "farmers" }
