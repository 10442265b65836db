package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/pagination"
)

// Repository persists payments and their invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	FindOrderPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	MarkPaidIfUnpaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	ListForActor(ctx context.Context, actorID uuid.UUID, role enums.ActorRole, params pagination.Params) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment repository on the given connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("metadata->>'"+models.MetaStripeSessionID+"' = ?", sessionID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindOrderPayment returns the most recent inbound payment for the order,
// skipping payout rows.
func (r *repository) FindOrderPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND method <> ?", orderID, enums.PaymentMethodPayout).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaidIfUnpaid flips the row to paid only when it is still unpaid. The
// caller issues an invoice only when this reports true, which keeps the
// invoice-per-settlement guarantee under concurrent reconciliation.
func (r *repository) MarkPaidIfUnpaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusUnpaid).
		Updates(map[string]any{
			"status":     enums.PaymentStatusPaid,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// ListForActor returns the payment rows visible to the actor. Markets see the
// payments they made, farmers and transporters see rows addressed to them.
func (r *repository) ListForActor(ctx context.Context, actorID uuid.UUID, role enums.ActorRole, params pagination.Params) ([]models.Payment, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{})

	switch role {
	case enums.ActorRoleMarket:
		query = query.Where("market_id = ?", actorID)
	case enums.ActorRoleFarmer:
		query = query.Where("farmer_id = ?", actorID)
	case enums.ActorRoleTransporter:
		query = query.Where("transporter_id = ?", actorID)
	default:
		return nil, fmt.Errorf("unknown actor role %q", role)
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

	var rows []models.Payment
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	return rows, err
}

// IsNotFound reports whether the error is a missing-record lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
