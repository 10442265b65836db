package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kelvinmwangi/farmconnect-backend/api/responses"
	"github.com/kelvinmwangi/farmconnect-backend/api/validators"
	transportsvc "github.com/kelvinmwangi/farmconnect-backend/internal/transport"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
)

// TransportQuotes returns ranked delivery quotes for a distance.
func TransportQuotes(svc transportsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transport service unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quotes, err := svc.Quotes(r.Context(), transportsvc.QuoteInput{
			DistanceKm:         payload.DistanceKm,
			NeedsRefrigeration: payload.NeedsRefrigeration,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quoteResponse{Quotes: quotes})
	}
}

type quoteRequest struct {
	DistanceKm         decimal.Decimal `json:"distance_km" validate:"required"`
	NeedsRefrigeration bool            `json:"needs_refrigeration"`
}

type quoteResponse struct {
	Quotes []transportsvc.Quote `json:"quotes"`
}
