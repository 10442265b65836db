package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/kelvinmwangi/farmconnect-backend/internal/payments"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
)

type paymentReconciler interface {
	ReconcileSession(ctx context.Context, input payments.ReconcileSessionInput) error
}

type ServiceParams struct {
	Payments paymentReconciler
}

// Service routes verified Stripe events into payment reconciliation.
type Service struct {
	payments paymentReconciler
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	return &Service{payments: params.Payments}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.payments.ReconcileSession(ctx, payments.ReconcileSessionInput{
			SessionID:      sess.ID,
			OrderID:        orderIDFromMetadata(sess.Metadata),
			AmountMinor:    sess.AmountTotal,
			Currency:       currencyFromStripe(sess.Currency),
			AllowSynthesis: true,
		})
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		sessionID := intent.Metadata["checkout_session_id"]
		if sessionID == "" {
			// Not one of ours; checkout.session.completed covers the rest.
			return nil
		}
		return s.payments.ReconcileSession(ctx, payments.ReconcileSessionInput{
			SessionID:   sessionID,
			AmountMinor: intent.Amount,
			Currency:    currencyFromStripe(intent.Currency),
		})
	default:
		return nil
	}
}

func orderIDFromMetadata(metadata map[string]string) *uuid.UUID {
	if metadata == nil {
		return nil
	}
	raw, ok := metadata["order_id"]
	if !ok {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func currencyFromStripe(currency stripe.Currency) enums.Currency {
	parsed, err := enums.ParseCurrency(string(currency))
	if err != nil {
		return ""
	}
	return parsed
}
