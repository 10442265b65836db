package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinmwangi/farmconnect-backend/api/responses"
	"github.com/kelvinmwangi/farmconnect-backend/api/validators"
	orderssvc "github.com/kelvinmwangi/farmconnect-backend/internal/orders"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	dbtypes "github.com/kelvinmwangi/farmconnect-backend/pkg/db/types"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/pagination"
)

const maxNoteLength = 500

// CreateOrder lets a market submit a new produce order.
func CreateOrder(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if role != enums.ActorRoleMarket {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only markets create orders"))
			return
		}

		var payload orderssvc.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.MarketID = actorID
		if payload.DeliveryNote != nil {
			note := validators.SanitizeString(*payload.DeliveryNote, maxNoteLength)
			payload.DeliveryNote = &note
		}

		order, err := svc.Create(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// GetOrder returns a single order by id.
func GetOrder(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !orderVisibleTo(order, actorID, role) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// ListOrders returns the actor's orders, newest first.
func ListOrders(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := listFilterForActor(actorID, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			filter.Status = &status
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.List(r.Context(), filter, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListResponse(orders, limit))
	}
}

// TransitionOrder advances an order through its lifecycle.
func TransitionOrder(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status"))
			return
		}

		order, err := svc.Transition(r.Context(), orderssvc.TransitionInput{
			OrderID:       orderID,
			NewStatus:     status,
			ActorID:       actorID,
			ActorRole:     role,
			TransporterID: payload.TransporterID,
			Note:          validators.SanitizeString(payload.Note, maxNoteLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func listFilterForActor(actorID uuid.UUID, role enums.ActorRole) (orderssvc.ListFilter, error) {
	id := actorID
	switch role {
	case enums.ActorRoleFarmer:
		return orderssvc.ListFilter{FarmerID: &id}, nil
	case enums.ActorRoleMarket:
		return orderssvc.ListFilter{MarketID: &id}, nil
	case enums.ActorRoleTransporter:
		return orderssvc.ListFilter{TransporterID: &id}, nil
	default:
		return orderssvc.ListFilter{}, pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
}

func orderVisibleTo(order *models.Order, actorID uuid.UUID, role enums.ActorRole) bool {
	switch role {
	case enums.ActorRoleFarmer:
		return order.FarmerID == actorID
	case enums.ActorRoleMarket:
		return order.MarketID == actorID
	case enums.ActorRoleTransporter:
		return order.TransporterID != nil && *order.TransporterID == actorID
	default:
		return false
	}
}

type transitionRequest struct {
	Status        string     `json:"status" validate:"required"`
	Note          string     `json:"note,omitempty"`
	TransporterID *uuid.UUID `json:"transporterId,omitempty" validate:"omitempty,uuid4"`
}

type orderResponse struct {
	ID            uuid.UUID             `json:"id"`
	FarmerID      uuid.UUID             `json:"farmer_id"`
	MarketID      uuid.UUID             `json:"market_id"`
	TransporterID *uuid.UUID            `json:"transporter_id,omitempty"`
	Status        string                `json:"status"`
	StatusHistory dbtypes.StatusHistory `json:"status_history"`
	Revision      int64                 `json:"revision"`
	TotalAmount   decimal.Decimal       `json:"total_amount"`
	TransportCost decimal.Decimal       `json:"transport_cost"`
	DistanceKm    decimal.Decimal       `json:"distance_km"`
	Currency      string                `json:"currency"`
	DeliveryNote  *string               `json:"delivery_note,omitempty"`
	DeliveredAt   *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt   *time.Time            `json:"cancelled_at,omitempty"`
	Items         []orderItemResponse   `json:"items"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

type orderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProduceName string          `json:"produce_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:          item.ID,
			ProduceName: item.ProduceName,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
		})
	}

	return orderResponse{
		ID:            order.ID,
		FarmerID:      order.FarmerID,
		MarketID:      order.MarketID,
		TransporterID: order.TransporterID,
		Status:        order.Status.String(),
		StatusHistory: order.StatusHistory,
		Revision:      order.Revision,
		TotalAmount:   order.TotalAmount,
		TransportCost: order.TransportCost,
		DistanceKm:    order.DistanceKm,
		Currency:      order.Currency.String(),
		DeliveryNote:  order.DeliveryNote,
		DeliveredAt:   order.DeliveredAt,
		CancelledAt:   order.CancelledAt,
		Items:         items,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

func newOrderListResponse(orders []models.Order, limit int) orderListResponse {
	resp := orderListResponse{Orders: make([]orderResponse, 0, len(orders))}

	// The repository fetches limit+1 rows to detect the next page.
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		resp.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	for i := range orders {
		resp.Orders = append(resp.Orders, newOrderResponse(&orders[i]))
	}
	return resp
}
