package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	dbpkg "github.com/kelvinmwangi/farmconnect-backend/pkg/db"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	dbtypes "github.com/kelvinmwangi/farmconnect-backend/pkg/db/types"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

const (
	uxPayoutFarmer      = "ux_payments_payout_farmer"
	uxPayoutTransporter = "ux_payments_payout_transporter"
)

// DeliveredOrderInput carries the settled amounts the split is computed from.
type DeliveredOrderInput struct {
	OrderID       uuid.UUID
	FarmerID      uuid.UUID
	TransporterID *uuid.UUID
	TotalAmount   decimal.Decimal
	TransportCost decimal.Decimal
	Currency      enums.Currency
}

// Service records payouts when orders are delivered.
type Service interface {
	CreateForDelivery(ctx context.Context, input DeliveredOrderInput) error
	CreatePayoutForRecipient(ctx context.Context, orderID, recipientID uuid.UUID, recipientType enums.RecipientType, amount decimal.Decimal, currency enums.Currency) error
	Earnings(ctx context.Context, recipientID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds the payout service.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

// CreateForDelivery splits the order total: the farmer receives the total
// minus the transport cost, the transporter receives the transport cost. The
// farmer share is reduced even when no transporter is assigned. Each recipient
// is attempted independently so one failed leg never blocks the other.
func (s *service) CreateForDelivery(ctx context.Context, input DeliveredOrderInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	farmerAmount := input.TotalAmount.Sub(input.TransportCost)

	var errs []error
	if farmerAmount.IsPositive() && input.FarmerID != uuid.Nil {
		if err := s.CreatePayoutForRecipient(ctx, input.OrderID, input.FarmerID, enums.RecipientTypeFarmer, farmerAmount, input.Currency); err != nil {
			errs = append(errs, fmt.Errorf("farmer payout: %w", err))
		}
	}
	if input.TransportCost.IsPositive() && input.TransporterID != nil {
		if err := s.CreatePayoutForRecipient(ctx, input.OrderID, *input.TransporterID, enums.RecipientTypeTransporter, input.TransportCost, input.Currency); err != nil {
			errs = append(errs, fmt.Errorf("transporter payout: %w", err))
		}
	}
	return multierr.Combine(errs...)
}

func (s *service) CreatePayoutForRecipient(ctx context.Context, orderID, recipientID uuid.UUID, recipientType enums.RecipientType, amount decimal.Decimal, currency enums.Currency) error {
	if orderID == uuid.Nil || recipientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order and recipient ids required")
	}
	if !recipientType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid recipient type %q", recipientType))
	}
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	if currency == "" {
		currency = enums.CurrencyKES
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		exists, err := repo.Exists(ctx, orderID, recipientID, recipientType)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payout")
		}
		if exists {
			return nil
		}

		now := time.Now().UTC()
		payout := &models.Payment{
			OrderID:  orderID,
			Amount:   amount,
			Currency: currency,
			Method:   enums.PaymentMethodPayout,
			Status:   enums.PaymentStatusPayout,
			Metadata: dbtypes.JSONMap{models.MetaPayoutRecipientType: recipientType.String()},
			PaidAt:   &now,
		}
		switch recipientType {
		case enums.RecipientTypeTransporter:
			payout.TransporterID = &recipientID
		default:
			payout.FarmerID = &recipientID
		}

		if err := repo.Create(ctx, payout); err != nil {
			if dbpkg.IsUniqueViolation(err, uxPayoutFarmer) || dbpkg.IsUniqueViolation(err, uxPayoutTransporter) {
				// Concurrent delivery handling already wrote this leg.
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutRecorded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payout.ID,
			Version:       1,
			Data: payloads.PayoutRecordedEvent{
				PaymentID:     payout.ID,
				OrderID:       orderID,
				RecipientID:   recipientID,
				RecipientType: recipientType,
				Amount:        amount,
				Currency:      currency,
			},
		})
	})
}

func (s *service) Earnings(ctx context.Context, recipientID uuid.UUID) (decimal.Decimal, error) {
	if recipientID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	total, err := s.repo.SumEarnings(ctx, recipientID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum earnings")
	}
	return total, nil
}
