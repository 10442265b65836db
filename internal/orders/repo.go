package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/pagination"
)

// Repository manages persistence for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	Find(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// UpdateWithRevision applies updates only when the stored revision still
	// matches expected, bumping revision by one. Returns false when another
	// writer got there first.
	UpdateWithRevision(ctx context.Context, id uuid.UUID, expectedRevision int64, updates map[string]any) (bool, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateWithRevision(ctx context.Context, id uuid.UUID, expectedRevision int64, updates map[string]any) (bool, error) {
	updates["revision"] = expectedRevision + 1
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND revision = ?", id, expectedRevision).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items")

	if filter.FarmerID != nil {
		query = query.Where("farmer_id = ?", *filter.FarmerID)
	}
	if filter.MarketID != nil {
		query = query.Where("market_id = ?", *filter.MarketID)
	}
	if filter.TransporterID != nil {
		query = query.Where("transporter_id = ?", *filter.TransporterID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Order
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	return rows, err
}
