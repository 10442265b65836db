package controllers

import (
	"net/http"

	"github.com/kelvinmwangi/farmconnect-backend/api/responses"
	"github.com/kelvinmwangi/farmconnect-backend/api/validators"
	paymentssvc "github.com/kelvinmwangi/farmconnect-backend/internal/payments"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
)

// CreateCheckoutSession starts a Stripe checkout session for an order. This
// endpoint is public; the payment page calls it before the buyer signs in.
func CreateCheckoutSession(svc paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload paymentssvc.CreateCheckoutSessionInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateCheckoutSession(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// GetCheckoutSessionStatus reports the state of a checkout session.
func GetCheckoutSessionStatus(svc paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sessionId is required"))
			return
		}

		status, err := svc.GetSessionStatus(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}
