package models

import (
	"time"

	"github.com/google/uuid"
)

// Market is a buyer profile: a market vendor that places and pays for orders.
type Market struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	Phone     *string   `gorm:"column:phone"`
	Location  *string   `gorm:"column:location"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Market) TableName() string { return "markets" }
