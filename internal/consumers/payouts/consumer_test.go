package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	payoutsvc "github.com/kelvinmwangi/farmconnect-backend/internal/payouts"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox/payloads"
)

type stubPayoutCreator struct {
	inputs []payoutsvc.DeliveredOrderInput
	err    error
}

func (s *stubPayoutCreator) CreateForDelivery(ctx context.Context, input payoutsvc.DeliveredOrderInput) error {
	s.inputs = append(s.inputs, input)
	return s.err
}

type stubManager struct {
	seen    map[uuid.UUID]bool
	deleted []uuid.UUID
}

func newStubManager() *stubManager {
	return &stubManager{seen: map[uuid.UUID]bool{}}
}

func (s *stubManager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if s.seen[eventID] {
		return true, nil
	}
	s.seen[eventID] = true
	return false, nil
}

func (s *stubManager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	s.deleted = append(s.deleted, eventID)
	delete(s.seen, eventID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "payout-consumer-test", Output: io.Discard})
}

func deliveredEnvelope(t *testing.T, eventID uuid.UUID, delivered payloads.OrderDeliveredEvent) outbox.PayloadEnvelope {
	t.Helper()
	raw, err := json.Marshal(delivered)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version: 1,
		EventID: eventID.String(),
		Data:    raw,
	}
}

func TestConsumerProcessesDeliveredOrder(t *testing.T) {
	creator := &stubPayoutCreator{}
	consumer, err := NewConsumer(creator, newStubManager(), testLogger())
	if err != nil {
		t.Fatalf("setup consumer: %v", err)
	}

	transporterID := uuid.New()
	delivered := payloads.OrderDeliveredEvent{
		OrderID:       uuid.New(),
		FarmerID:      uuid.New(),
		TransporterID: &transporterID,
		TotalAmount:   decimal.NewFromInt(1000),
		TransportCost: decimal.NewFromInt(150),
		Currency:      enums.CurrencyKES,
	}
	envelope := deliveredEnvelope(t, uuid.New(), delivered)

	if err := consumer.Process(context.Background(), enums.EventOrderDelivered, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(creator.inputs) != 1 {
		t.Fatalf("expected one payout call, got %d", len(creator.inputs))
	}
	input := creator.inputs[0]
	if input.OrderID != delivered.OrderID || !input.TransportCost.Equal(delivered.TransportCost) {
		t.Fatalf("unexpected input %+v", input)
	}
}

func TestConsumerSkipsDuplicateEvents(t *testing.T) {
	creator := &stubPayoutCreator{}
	manager := newStubManager()
	consumer, err := NewConsumer(creator, manager, testLogger())
	if err != nil {
		t.Fatalf("setup consumer: %v", err)
	}

	eventID := uuid.New()
	envelope := deliveredEnvelope(t, eventID, payloads.OrderDeliveredEvent{
		OrderID:     uuid.New(),
		FarmerID:    uuid.New(),
		TotalAmount: decimal.NewFromInt(500),
		Currency:    enums.CurrencyKES,
	})

	if err := consumer.Process(context.Background(), enums.EventOrderDelivered, envelope); err != nil {
		t.Fatalf("first process: %v", err)
	}
	if err := consumer.Process(context.Background(), enums.EventOrderDelivered, envelope); err != nil {
		t.Fatalf("duplicate process: %v", err)
	}
	if len(creator.inputs) != 1 {
		t.Fatalf("duplicate delivery reprocessed")
	}
}

func TestConsumerIgnoresOtherEventTypes(t *testing.T) {
	creator := &stubPayoutCreator{}
	consumer, err := NewConsumer(creator, newStubManager(), testLogger())
	if err != nil {
		t.Fatalf("setup consumer: %v", err)
	}

	envelope := deliveredEnvelope(t, uuid.New(), payloads.OrderDeliveredEvent{})
	if err := consumer.Process(context.Background(), enums.EventOrderCreated, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(creator.inputs) != 0 {
		t.Fatalf("unexpected payout call")
	}
}

func TestConsumerReleasesGuardOnFailure(t *testing.T) {
	creator := &stubPayoutCreator{err: errors.New("db down")}
	manager := newStubManager()
	consumer, err := NewConsumer(creator, manager, testLogger())
	if err != nil {
		t.Fatalf("setup consumer: %v", err)
	}

	eventID := uuid.New()
	envelope := deliveredEnvelope(t, eventID, payloads.OrderDeliveredEvent{
		OrderID:     uuid.New(),
		FarmerID:    uuid.New(),
		TotalAmount: decimal.NewFromInt(100),
		Currency:    enums.CurrencyKES,
	})

	if err := consumer.Process(context.Background(), enums.EventOrderDelivered, envelope); err == nil {
		t.Fatalf("expected failure to propagate")
	}
	if len(manager.deleted) != 1 || manager.deleted[0] != eventID {
		t.Fatalf("guard key must be released on failure")
	}

	// Redelivery can retry now.
	creator.err = nil
	if err := consumer.Process(context.Background(), enums.EventOrderDelivered, envelope); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(creator.inputs) != 2 {
		t.Fatalf("retry did not reach the payout service")
	}
}
