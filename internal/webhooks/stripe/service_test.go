package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/kelvinmwangi/farmconnect-backend/internal/payments"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

type stubReconciler struct {
	inputs []payments.ReconcileSessionInput
	err    error
}

func (s *stubReconciler) ReconcileSession(ctx context.Context, input payments.ReconcileSessionInput) error {
	s.inputs = append(s.inputs, input)
	return s.err
}

func newTestService(t *testing.T, reconciler *stubReconciler) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Payments: reconciler})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func sessionEvent(t *testing.T, sess *stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + sess.ID,
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestService_HandleCheckoutSessionCompleted(t *testing.T) {
	reconciler := &stubReconciler{}
	svc := newTestService(t, reconciler)

	orderID := uuid.New()
	event := sessionEvent(t, &stripe.CheckoutSession{
		ID:          "cs_done",
		AmountTotal: 123450,
		Currency:    "kes",
		Metadata:    map[string]string{"order_id": orderID.String()},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(reconciler.inputs) != 1 {
		t.Fatalf("expected one reconciliation, got %d", len(reconciler.inputs))
	}

	input := reconciler.inputs[0]
	if input.SessionID != "cs_done" || input.AmountMinor != 123450 {
		t.Fatalf("unexpected input %+v", input)
	}
	if !input.AllowSynthesis {
		t.Fatalf("session completion must permit synthesis")
	}
	if input.OrderID == nil || *input.OrderID != orderID {
		t.Fatalf("order id not propagated")
	}
	if input.Currency != enums.CurrencyKES {
		t.Fatalf("expected KES, got %s", input.Currency)
	}
}

func TestService_HandleCheckoutSessionWithoutOrderMetadata(t *testing.T) {
	reconciler := &stubReconciler{}
	svc := newTestService(t, reconciler)

	event := sessionEvent(t, &stripe.CheckoutSession{ID: "cs_anon", AmountTotal: 1000})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if reconciler.inputs[0].OrderID != nil {
		t.Fatalf("expected nil order id")
	}
}

func TestService_HandlePaymentIntentSucceeded(t *testing.T) {
	reconciler := &stubReconciler{}
	svc := newTestService(t, reconciler)

	intent := &stripe.PaymentIntent{
		ID:       "pi_test",
		Amount:   5000,
		Currency: "kes",
		Metadata: map[string]string{"checkout_session_id": "cs_from_intent"},
	}
	raw, _ := json.Marshal(intent)
	event := &stripe.Event{
		Type: stripe.EventTypePaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(reconciler.inputs) != 1 {
		t.Fatalf("expected one reconciliation")
	}
	input := reconciler.inputs[0]
	if input.SessionID != "cs_from_intent" {
		t.Fatalf("expected session keyed from intent metadata, got %q", input.SessionID)
	}
	if input.AllowSynthesis {
		t.Fatalf("payment intent path must not synthesize payments")
	}
}

func TestService_HandlePaymentIntentWithoutSessionIsIgnored(t *testing.T) {
	reconciler := &stubReconciler{}
	svc := newTestService(t, reconciler)

	raw, _ := json.Marshal(&stripe.PaymentIntent{ID: "pi_orphan", Amount: 100})
	event := &stripe.Event{
		Type: stripe.EventTypePaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(reconciler.inputs) != 0 {
		t.Fatalf("orphan intent must be ignored")
	}
}

func TestService_HandleUnknownEventType(t *testing.T) {
	reconciler := &stubReconciler{}
	svc := newTestService(t, reconciler)

	event := &stripe.Event{
		Type: "customer.created",
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown types must be accepted: %v", err)
	}
	if len(reconciler.inputs) != 0 {
		t.Fatalf("unknown types must not reconcile")
	}
}
