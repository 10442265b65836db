package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinmwangi/farmconnect-backend/api/responses"
	"github.com/kelvinmwangi/farmconnect-backend/api/validators"
	paymentssvc "github.com/kelvinmwangi/farmconnect-backend/internal/payments"
	payoutssvc "github.com/kelvinmwangi/farmconnect-backend/internal/payouts"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/pagination"
)

// PayNow settles a pending payment directly, outside the hosted checkout flow.
func PayNow(svc paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if role != enums.ActorRoleMarket {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only markets settle payments"))
			return
		}

		paymentID, err := pathUUID(r, "paymentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.ProcessPayment(r.Context(), paymentID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResponse(payment))
	}
}

// ListPayments returns the actor's payment history, newest first.
func ListPayments(svc paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payments, err := svc.ListForActor(r.Context(), actorID, role, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentListResponse(payments, limit))
	}
}

// Earnings reports the recipient's accumulated payout total.
func Earnings(svc payoutssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if role != enums.ActorRoleFarmer && role != enums.ActorRoleTransporter {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "earnings are for farmers and transporters"))
			return
		}

		total, err := svc.Earnings(r.Context(), actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, earningsResponse{RecipientID: actorID, Total: total})
	}
}

type earningsResponse struct {
	RecipientID uuid.UUID       `json:"recipient_id"`
	Total       decimal.Decimal `json:"total"`
}

type paymentResponse struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method"`
	Status    string          `json:"status"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type paymentListResponse struct {
	Payments   []paymentResponse `json:"payments"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func newPaymentResponse(payment *models.Payment) paymentResponse {
	return paymentResponse{
		ID:        payment.ID,
		OrderID:   payment.OrderID,
		Amount:    payment.Amount,
		Currency:  payment.Currency.String(),
		Method:    string(payment.Method),
		Status:    string(payment.Status),
		PaidAt:    payment.PaidAt,
		CreatedAt: payment.CreatedAt,
	}
}

func newPaymentListResponse(payments []models.Payment, limit int) paymentListResponse {
	resp := paymentListResponse{Payments: make([]paymentResponse, 0, len(payments))}

	if len(payments) > limit {
		payments = payments[:limit]
		last := payments[len(payments)-1]
		resp.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	for i := range payments {
		resp.Payments = append(resp.Payments, newPaymentResponse(&payments[i]))
	}
	return resp
}
