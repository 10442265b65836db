package payouts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	payoutsvc "github.com/kelvinmwangi/farmconnect-backend/internal/payouts"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox/payloads"
)

const payoutConsumerName = "payouts"

type payoutCreator interface {
	CreateForDelivery(ctx context.Context, input payoutsvc.DeliveredOrderInput) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns delivered-order events into payout rows. The Redis guard
// plus the payout pre-check make Pub/Sub redelivery harmless.
type Consumer struct {
	payouts payoutCreator
	manager idempotencyChecker
	logg    *logger.Logger
}

// NewConsumer builds the payout consumer.
func NewConsumer(payouts payoutCreator, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{payouts: payouts, manager: manager, logg: logg}, nil
}

// Process handles one outbox envelope from the orders subscription.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventOrderDelivered {
		c.logg.Info(logCtx, "event not handled by payout consumer")
		return nil
	}

	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, payoutConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var delivered payloads.OrderDeliveredEvent
	if err := json.Unmarshal(envelope.Data, &delivered); err != nil {
		c.logg.Error(logCtx, "failed to decode delivered order", err)
		_ = c.manager.Delete(ctx, payoutConsumerName, eventID)
		return fmt.Errorf("decode payload: %w", err)
	}

	input := payoutsvc.DeliveredOrderInput{
		OrderID:       delivered.OrderID,
		FarmerID:      delivered.FarmerID,
		TransporterID: delivered.TransporterID,
		TotalAmount:   delivered.TotalAmount,
		TransportCost: delivered.TransportCost,
		Currency:      delivered.Currency,
	}
	if err := c.payouts.CreateForDelivery(ctx, input); err != nil {
		c.logg.Error(logCtx, "failed to record payouts", err)
		_ = c.manager.Delete(ctx, payoutConsumerName, eventID)
		return err
	}

	c.logg.Info(logCtx, "payouts recorded for delivered order")
	return nil
}
