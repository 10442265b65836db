package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	payoutconsumer "github.com/kelvinmwangi/farmconnect-backend/internal/consumers/payouts"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox"
)

// Service pulls order events off the orders subscription and feeds them to
// the payout consumer. Malformed messages are acked and logged; transient
// consumer failures nack so Pub/Sub redelivers.
type Service struct {
	subscription *gcppubsub.Subscriber
	consumer     *payoutconsumer.Consumer
	logg         *logger.Logger
}

// NewService builds the payout worker service.
func NewService(subscription *gcppubsub.Subscriber, consumer *payoutconsumer.Consumer, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("orders subscription is required")
	}
	if consumer == nil {
		return nil, errors.New("payout consumer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, consumer: consumer, logg: logg}, nil
}

// Run consumes messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process returns true when the message should be redelivered.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) bool {
	logCtx := s.logg.WithFields(ctx, map[string]any{"message_id": msg.ID})

	eventType, envelope, err := decodeMessage(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{"error": err.Error()}), "invalid order event message")
		return false
	}

	if err := s.consumer.Process(logCtx, eventType, envelope); err != nil {
		s.logg.Error(logCtx, "payout consumer failed", err)
		return true
	}
	return false
}

func decodeMessage(msg *gcppubsub.Message) (enums.OutboxEventType, outbox.PayloadEnvelope, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return "", envelope, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		return "", envelope, fmt.Errorf("event_type: %w", err)
	}

	if strings.TrimSpace(envelope.EventID) == "" {
		envelope.EventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if envelope.EventID == "" {
		return "", envelope, errors.New("event_id missing")
	}
	return eventType, envelope, nil
}
