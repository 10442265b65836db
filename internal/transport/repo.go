package transport

import (
	"context"

	"gorm.io/gorm"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
)

// Repository reads transporter rate cards.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListAvailable(ctx context.Context) ([]models.Transporter, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transporter repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListAvailable(ctx context.Context) ([]models.Transporter, error) {
	var transporters []models.Transporter
	if err := r.db.WithContext(ctx).
		Where("is_available = ?", true).
		Order("name ASC").
		Find(&transporters).Error; err != nil {
		return nil, err
	}
	return transporters, nil
}
