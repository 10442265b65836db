package payouts

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

// Repository persists payout rows and answers earnings queries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payment) error
	Exists(ctx context.Context, orderID, recipientID uuid.UUID, recipientType enums.RecipientType) (bool, error)
	SumEarnings(ctx context.Context, recipientID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payout repository on the given connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.Payment) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) Exists(ctx context.Context, orderID, recipientID uuid.UUID, recipientType enums.RecipientType) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND method = ?", orderID, enums.PaymentMethodPayout)
	switch recipientType {
	case enums.RecipientTypeTransporter:
		query = query.Where("transporter_id = ?", recipientID)
	default:
		query = query.Where("farmer_id = ?", recipientID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumEarnings totals every settled row addressed to the recipient, covering
// both payout rows and direct paid payments.
func (r *repository) SumEarnings(ctx context.Context, recipientID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("SUM(amount)").
		Where("(farmer_id = ? OR transporter_id = ?) AND status IN ?",
			recipientID, recipientID,
			[]enums.PaymentStatus{enums.PaymentStatusPayout, enums.PaymentStatusPaid}).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
