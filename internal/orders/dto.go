package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

// CreateOrderItemInput is one produce line on a new order.
type CreateOrderItemInput struct {
	ProduceName string          `json:"produce_name" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"required"`
}

// CreateOrderInput captures everything a market submits at checkout.
type CreateOrderInput struct {
	FarmerID      uuid.UUID              `json:"farmer_id" validate:"required"`
	MarketID      uuid.UUID              `json:"-"`
	TransporterID *uuid.UUID             `json:"transporter_id,omitempty"`
	TransportCost decimal.Decimal        `json:"transport_cost"`
	DistanceKm    decimal.Decimal        `json:"distance_km"`
	Currency      enums.Currency         `json:"currency"`
	DeliveryNote  *string                `json:"delivery_note,omitempty"`
	Items         []CreateOrderItemInput `json:"items" validate:"required,min=1,dive"`
}

// TransitionInput carries one lifecycle transition request.
type TransitionInput struct {
	OrderID       uuid.UUID
	NewStatus     enums.OrderStatus
	ActorID       uuid.UUID
	ActorRole     enums.ActorRole
	TransporterID *uuid.UUID
	Note          string
}

// ListFilter narrows order reads per actor.
type ListFilter struct {
	FarmerID      *uuid.UUID
	MarketID      *uuid.UUID
	TransporterID *uuid.UUID
	Status        *enums.OrderStatus
}
