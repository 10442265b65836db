package profiles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
)

// Repository reads actor profiles by id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindFarmer(ctx context.Context, id uuid.UUID) (*models.Farmer, error)
	FindMarket(ctx context.Context, id uuid.UUID) (*models.Market, error)
	FindTransporter(ctx context.Context, id uuid.UUID) (*models.Transporter, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a profile repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindFarmer(ctx context.Context, id uuid.UUID) (*models.Farmer, error) {
	var farmer models.Farmer
	if err := r.db.WithContext(ctx).First(&farmer, "id = ?", id).Error; err != nil {
		return nil, nilIfNotFound(err)
	}
	return &farmer, nil
}

func (r *repository) FindMarket(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	var market models.Market
	if err := r.db.WithContext(ctx).First(&market, "id = ?", id).Error; err != nil {
		return nil, nilIfNotFound(err)
	}
	return &market, nil
}

func (r *repository) FindTransporter(ctx context.Context, id uuid.UUID) (*models.Transporter, error) {
	var transporter models.Transporter
	if err := r.db.WithContext(ctx).First(&transporter, "id = ?", id).Error; err != nil {
		return nil, nilIfNotFound(err)
	}
	return &transporter, nil
}

func nilIfNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProfileNotFound
	}
	return err
}

// ErrProfileNotFound is returned when no profile row matches the lookup.
var ErrProfileNotFound = errors.New("profile not found")
