package payouts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox"
)

type stubPayoutsRepo struct {
	created      []*models.Payment
	existing     map[string]bool
	createErr    map[enums.RecipientType]error
	earningsBase decimal.Decimal
}

func newStubPayoutsRepo() *stubPayoutsRepo {
	return &stubPayoutsRepo{existing: map[string]bool{}, createErr: map[enums.RecipientType]error{}}
}

func payoutKey(orderID, recipientID uuid.UUID) string {
	return orderID.String() + "/" + recipientID.String()
}

func (s *stubPayoutsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPayoutsRepo) Create(ctx context.Context, payout *models.Payment) error {
	recipientType := enums.RecipientTypeFarmer
	if payout.TransporterID != nil {
		recipientType = enums.RecipientTypeTransporter
	}
	if err := s.createErr[recipientType]; err != nil {
		return err
	}
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	s.created = append(s.created, payout)
	return nil
}

func (s *stubPayoutsRepo) Exists(ctx context.Context, orderID, recipientID uuid.UUID, recipientType enums.RecipientType) (bool, error) {
	return s.existing[payoutKey(orderID, recipientID)], nil
}

func (s *stubPayoutsRepo) SumEarnings(ctx context.Context, recipientID uuid.UUID) (decimal.Decimal, error) {
	return s.earningsBase, nil
}

type stubOutbox struct {
	emitted []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.emitted = append(s.emitted, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository, ob outboxPublisher) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, ob)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func TestCreateForDeliverySplitsTotal(t *testing.T) {
	repo := newStubPayoutsRepo()
	ob := &stubOutbox{}
	svc := newTestService(t, repo, ob)

	transporterID := uuid.New()
	err := svc.CreateForDelivery(context.Background(), DeliveredOrderInput{
		OrderID:       uuid.New(),
		FarmerID:      uuid.New(),
		TransporterID: &transporterID,
		TotalAmount:   decimal.NewFromInt(1000),
		TransportCost: decimal.NewFromInt(150),
		Currency:      enums.CurrencyKES,
	})
	if err != nil {
		t.Fatalf("create for delivery: %v", err)
	}

	if len(repo.created) != 2 {
		t.Fatalf("expected 2 payout rows, got %d", len(repo.created))
	}
	var farmerAmount, transporterAmount decimal.Decimal
	for _, payout := range repo.created {
		if payout.Method != enums.PaymentMethodPayout || payout.Status != enums.PaymentStatusPayout {
			t.Fatalf("unexpected payout row %+v", payout)
		}
		if payout.PaidAt == nil {
			t.Fatalf("payout missing paid_at")
		}
		if payout.FarmerID != nil {
			farmerAmount = payout.Amount
		}
		if payout.TransporterID != nil {
			transporterAmount = payout.Amount
		}
	}
	if !farmerAmount.Equal(decimal.NewFromInt(850)) {
		t.Fatalf("expected farmer 850, got %s", farmerAmount)
	}
	if !transporterAmount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected transporter 150, got %s", transporterAmount)
	}
	if len(ob.emitted) != 2 {
		t.Fatalf("expected 2 payout_recorded events, got %d", len(ob.emitted))
	}
}

func TestCreateForDeliveryWithoutTransporterDeductsTransportCost(t *testing.T) {
	repo := newStubPayoutsRepo()
	svc := newTestService(t, repo, &stubOutbox{})

	err := svc.CreateForDelivery(context.Background(), DeliveredOrderInput{
		OrderID:       uuid.New(),
		FarmerID:      uuid.New(),
		TotalAmount:   decimal.NewFromInt(1000),
		TransportCost: decimal.NewFromInt(150),
		Currency:      enums.CurrencyKES,
	})
	if err != nil {
		t.Fatalf("create for delivery: %v", err)
	}

	// The transport cost is withheld from the farmer even when no
	// transporter is assigned to receive it.
	if len(repo.created) != 1 {
		t.Fatalf("expected a single farmer payout, got %d", len(repo.created))
	}
	if !repo.created[0].Amount.Equal(decimal.NewFromInt(850)) {
		t.Fatalf("expected 850 after deducting transport cost, got %s", repo.created[0].Amount)
	}
}

func TestCreateForDeliveryLegsAreIndependent(t *testing.T) {
	repo := newStubPayoutsRepo()
	repo.createErr[enums.RecipientTypeFarmer] = errors.New("farmer leg failed")
	svc := newTestService(t, repo, &stubOutbox{})

	transporterID := uuid.New()
	err := svc.CreateForDelivery(context.Background(), DeliveredOrderInput{
		OrderID:       uuid.New(),
		FarmerID:      uuid.New(),
		TransporterID: &transporterID,
		TotalAmount:   decimal.NewFromInt(1000),
		TransportCost: decimal.NewFromInt(150),
		Currency:      enums.CurrencyKES,
	})
	if err == nil {
		t.Fatalf("expected aggregated error")
	}

	// The transporter leg must still have landed.
	if len(repo.created) != 1 || repo.created[0].TransporterID == nil {
		t.Fatalf("transporter payout missing: %+v", repo.created)
	}
}

func TestCreateForDeliverySkipsExistingPayout(t *testing.T) {
	repo := newStubPayoutsRepo()
	svc := newTestService(t, repo, &stubOutbox{})

	orderID := uuid.New()
	farmerID := uuid.New()
	repo.existing[payoutKey(orderID, farmerID)] = true

	err := svc.CreateForDelivery(context.Background(), DeliveredOrderInput{
		OrderID:     orderID,
		FarmerID:    farmerID,
		TotalAmount: decimal.NewFromInt(500),
		Currency:    enums.CurrencyKES,
	})
	if err != nil {
		t.Fatalf("redelivery must be a no-op: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("duplicate payout written")
	}
}

func TestCreatePayoutForRecipientValidation(t *testing.T) {
	svc := newTestService(t, newStubPayoutsRepo(), &stubOutbox{})

	err := svc.CreatePayoutForRecipient(context.Background(), uuid.New(), uuid.New(), "investor", decimal.NewFromInt(10), enums.CurrencyKES)
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	err = svc.CreatePayoutForRecipient(context.Background(), uuid.New(), uuid.New(), enums.RecipientTypeFarmer, decimal.Zero, enums.CurrencyKES)
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
}

func TestEarnings(t *testing.T) {
	repo := newStubPayoutsRepo()
	repo.earningsBase = decimal.RequireFromString("1234.56")
	svc := newTestService(t, repo, &stubOutbox{})

	total, err := svc.Earnings(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("unexpected total %s", total)
	}

	if _, err := svc.Earnings(context.Background(), uuid.Nil); err == nil {
		t.Fatalf("expected validation error for nil recipient")
	}
}
