package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	dbtypes "github.com/kelvinmwangi/farmconnect-backend/pkg/db/types"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox/payloads"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	// ConfirmFromPayment moves a pending order to confirmed inside an existing
	// transaction. Orders already past pending are left untouched.
	ConfirmFromPayment(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// Allowed lifecycle edges. Everything else is an illegal jump.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed: {enums.OrderStatusPickedUp},
	enums.OrderStatusPickedUp:  {enums.OrderStatusInTransit},
	enums.OrderStatusInTransit: {enums.OrderStatusDelivered},
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.FarmerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farmer id required")
	}
	if input.MarketID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "market identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	if input.TransportCost.IsNegative() || input.DistanceKm.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transport cost and distance must be non-negative")
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyKES
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", currency))
	}

	now := time.Now().UTC()
	items := make([]models.OrderItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for _, item := range input.Items {
		if item.ProduceName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item produce name required")
		}
		if !item.Quantity.IsPositive() || item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive and price non-negative")
		}
		unit := item.Unit
		if unit == "" {
			unit = "kg"
		}
		lineTotal := item.Quantity.Mul(item.UnitPrice)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ProduceName: item.ProduceName,
			Quantity:    item.Quantity,
			Unit:        unit,
			UnitPrice:   item.UnitPrice,
			Subtotal:    lineTotal,
		})
	}

	order := &models.Order{
		ID:            uuid.New(),
		FarmerID:      input.FarmerID,
		MarketID:      input.MarketID,
		TransporterID: input.TransporterID,
		Status:        enums.OrderStatusPending,
		StatusHistory: dbtypes.StatusHistory{{
			Status:    enums.OrderStatusPending,
			Timestamp: now,
			ActorID:   &input.MarketID,
		}},
		TotalAmount:   subtotal.Add(input.TransportCost),
		TransportCost: input.TransportCost,
		DistanceKm:    input.DistanceKm,
		Currency:      currency,
		DeliveryNote:  input.DeliveryNote,
		Items:         items,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{ActorID: input.MarketID, Role: string(enums.ActorRoleMarket)},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				FarmerID:    order.FarmerID,
				MarketID:    order.MarketID,
				TotalAmount: order.TotalAmount,
				Currency:    order.Currency,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, error) {
	rows, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.NewStatus))
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.Find(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if !transitionAllowed(order.Status, input.NewStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot transition %s to %s", order.Status, input.NewStatus))
		}
		if err := s.authorizeTransition(order, input); err != nil {
			return err
		}

		now := time.Now().UTC()
		actorID := input.ActorID
		history := order.StatusHistory.Append(dbtypes.StatusEntry{
			Status:    input.NewStatus,
			Timestamp: now,
			ActorID:   &actorID,
			Note:      input.Note,
		})

		updates := map[string]any{
			"status":         input.NewStatus,
			"status_history": history,
			"updated_at":     now,
		}
		if input.TransporterID != nil && order.TransporterID == nil {
			updates["transporter_id"] = *input.TransporterID
		} else if order.TransporterID == nil && input.ActorRole == enums.ActorRoleTransporter {
			updates["transporter_id"] = input.ActorID
		}
		switch input.NewStatus {
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
		case enums.OrderStatusCancelled:
			updates["cancelled_at"] = now
		}

		applied, err := repo.UpdateWithRevision(ctx, order.ID, order.Revision, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently, retry")
		}

		order.Status = input.NewStatus
		order.StatusHistory = history
		order.Revision++
		if tid, ok := updates["transporter_id"].(uuid.UUID); ok {
			order.TransporterID = &tid
		}
		switch input.NewStatus {
		case enums.OrderStatusDelivered:
			order.DeliveredAt = &now
		case enums.OrderStatusCancelled:
			order.CancelledAt = &now
		}
		updated = order

		return s.emitTransitionEvents(ctx, tx, order, input, now)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) emitTransitionEvents(ctx context.Context, tx *gorm.DB, order *models.Order, input TransitionInput, now time.Time) error {
	actor := &outbox.ActorRef{ActorID: input.ActorID, Role: string(input.ActorRole)}

	fromStatus := enums.OrderStatusPending
	if len(order.StatusHistory) > 1 {
		fromStatus = order.StatusHistory[len(order.StatusHistory)-2].Status
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.OrderStateChangedEvent{
			OrderID:    order.ID,
			FarmerID:   order.FarmerID,
			MarketID:   order.MarketID,
			FromStatus: fromStatus,
			ToStatus:   input.NewStatus,
			ChangedAt:  now,
			Note:       input.Note,
		},
	}); err != nil {
		return err
	}

	switch input.NewStatus {
	case enums.OrderStatusCancelled:
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				FarmerID:    order.FarmerID,
				MarketID:    order.MarketID,
				CancelledAt: now,
				Reason:      input.Note,
			},
		})
	case enums.OrderStatusDelivered:
		// Emitted once per order even if delivery is replayed; the payout
		// worker consumes this to write the payout rows.
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderDeliveredEvent{
				OrderID:       order.ID,
				FarmerID:      order.FarmerID,
				MarketID:      order.MarketID,
				TransporterID: order.TransporterID,
				TotalAmount:   order.TotalAmount,
				TransportCost: order.TransportCost,
				Currency:      order.Currency,
				DeliveredAt:   now,
			},
		})
	}
	return nil
}

func (s *service) authorizeTransition(order *models.Order, input TransitionInput) error {
	switch input.NewStatus {
	case enums.OrderStatusConfirmed, enums.OrderStatusCancelled:
		if input.ActorRole != enums.ActorRoleFarmer {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the farmer may confirm or cancel")
		}
		if order.FarmerID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to farmer")
		}
	case enums.OrderStatusPickedUp, enums.OrderStatusInTransit, enums.OrderStatusDelivered:
		if input.ActorRole != enums.ActorRoleTransporter {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the transporter may move the order")
		}
		if order.TransporterID != nil && *order.TransporterID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to another transporter")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("status %s is not a transition target", input.NewStatus))
	}
	return nil
}

func (s *service) ConfirmFromPayment(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	order, err := repo.Find(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil
	}

	now := time.Now().UTC()
	history := order.StatusHistory.Append(dbtypes.StatusEntry{
		Status:    enums.OrderStatusConfirmed,
		Timestamp: now,
		Note:      "payment received",
	})

	applied, err := repo.UpdateWithRevision(ctx, order.ID, order.Revision, map[string]any{
		"status":         enums.OrderStatusConfirmed,
		"status_history": history,
		"updated_at":     now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
	}
	if !applied {
		// Lost the race to another writer; the order is no longer pending.
		return nil
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderStateChangedEvent{
			OrderID:    order.ID,
			FarmerID:   order.FarmerID,
			MarketID:   order.MarketID,
			FromStatus: enums.OrderStatusPending,
			ToStatus:   enums.OrderStatusConfirmed,
			ChangedAt:  now,
			Note:       "payment received",
		},
	})
}

func transitionAllowed(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
