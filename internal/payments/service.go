package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/config"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	dbtypes "github.com/kelvinmwangi/farmconnect-backend/pkg/db/types"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/outbox/payloads"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderService interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ConfirmFromPayment(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Service owns checkout sessions and payment settlement.
type Service interface {
	CreateCheckoutSession(ctx context.Context, input CreateCheckoutSessionInput) (*CheckoutSessionResult, error)
	GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error)
	ProcessPayment(ctx context.Context, paymentID, marketID uuid.UUID) (*models.Payment, error)
	ReconcileSession(ctx context.Context, input ReconcileSessionInput) error
	ListForActor(ctx context.Context, actorID uuid.UUID, role enums.ActorRole, params pagination.Params) ([]models.Payment, error)
}

// ServiceParams carries the payment service dependencies.
type ServiceParams struct {
	Repo              Repository
	Gateway           CheckoutClient
	Orders            orderService
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Payments          config.PaymentsConfig
	Logger            *logger.Logger
}

type service struct {
	repo    Repository
	gateway CheckoutClient
	orders  orderService
	tx      txRunner
	outbox  outboxPublisher
	cfg     config.PaymentsConfig
	logg    *logger.Logger
}

// NewService builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("checkout gateway required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		gateway: params.Gateway,
		orders:  params.Orders,
		tx:      params.TransactionRunner,
		outbox:  params.Outbox,
		cfg:     params.Payments,
		logg:    params.Logger,
	}, nil
}

func (s *service) CreateCheckoutSession(ctx context.Context, input CreateCheckoutSessionInput) (*CheckoutSessionResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.Currency(s.cfg.DefaultCurrency)
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", currency))
	}

	successURL := input.SuccessURL
	if successURL == "" {
		successURL = s.cfg.PublicBaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := input.CancelURL
	if cancelURL == "" {
		cancelURL = s.cfg.PublicBaseURL + "/payment/cancelled"
	}

	// The order is the source of truth for which market and farmer the
	// payment row belongs to; the public endpoint carries only its id.
	order, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency.Lower()),
				UnitAmount: stripe.Int64(toMinorUnits(input.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("FarmConnect order " + shortOrderRef(input.OrderID)),
				},
			},
		}},
		Metadata: map[string]string{"order_id": input.OrderID.String()},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": input.OrderID.String()},
		},
	}

	sess, err := s.gateway.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	// Best effort: the webhook path can synthesize the row later, so a
	// failed insert must not void the session the market already has.
	payment := &models.Payment{
		OrderID:  input.OrderID,
		MarketID: &order.MarketID,
		FarmerID: &order.FarmerID,
		Amount:   input.Amount,
		Currency: currency,
		Method:   enums.PaymentMethodCard,
		Status:   enums.PaymentStatusUnpaid,
		Metadata: dbtypes.JSONMap{models.MetaStripeSessionID: sess.ID},
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		s.logg.Error(ctx, "record checkout payment", err)
	}

	return &CheckoutSessionResult{URL: sess.URL, SessionID: sess.ID}, nil
}

func (s *service) GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	sess, err := s.gateway.GetSession(ctx, sessionID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}

	payment, err := s.repo.FindBySessionID(ctx, sessionID)
	if err != nil && !IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by session")
	}
	if payment == nil {
		if orderID, ok := orderIDFromSession(sess); ok {
			payment, err = s.repo.FindOrderPayment(ctx, orderID)
			if err != nil && !IsNotFound(err) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by order")
			}
		}
	}

	status := string(sess.PaymentStatus)
	if payment != nil {
		status = payment.Status.String()
	}
	return &SessionStatus{Status: status, Payment: payment, Session: sess}, nil
}

func (s *service) ProcessPayment(ctx context.Context, paymentID, marketID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if marketID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "market id required")
	}

	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	// Payments are settled only by the market they were issued to. Rows from
	// other markets read as missing so ids cannot be probed.
	if payment.MarketID == nil || *payment.MarketID != marketID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if payment.Status == enums.PaymentStatusPaid {
		return payment, nil
	}
	if payment.Method == enums.PaymentMethodPayout {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout rows cannot be settled")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.settle(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, paymentID)
}

func (s *service) ListForActor(ctx context.Context, actorID uuid.UUID, role enums.ActorRole, params pagination.Params) ([]models.Payment, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid actor role %q", role))
	}

	rows, err := s.repo.ListForActor(ctx, actorID, role, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return rows, nil
}

func (s *service) ReconcileSession(ctx context.Context, input ReconcileSessionInput) error {
	if input.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindBySessionID(ctx, input.SessionID)
		if err != nil && !IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by session")
		}

		if payment != nil {
			if payment.Status == enums.PaymentStatusPaid {
				return nil
			}
			return s.settle(ctx, tx, payment)
		}

		if input.OrderID == nil || !input.AllowSynthesis {
			// Nothing to attach the settlement to; the gateway event stands alone.
			return nil
		}

		order, err := s.orders.Get(ctx, *input.OrderID)
		if err != nil {
			if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeNotFound {
				// Metadata names an order this system never issued.
				return nil
			}
			return err
		}

		now := time.Now().UTC()
		synthesized := &models.Payment{
			OrderID:  *input.OrderID,
			MarketID: &order.MarketID,
			FarmerID: &order.FarmerID,
			Amount:   fromMinorUnits(input.AmountMinor),
			Currency: defaultedCurrency(input.Currency, s.cfg.DefaultCurrency),
			Method:   enums.PaymentMethodCard,
			Status:   enums.PaymentStatusPaid,
			Metadata: dbtypes.JSONMap{models.MetaStripeSessionID: input.SessionID},
			PaidAt:   &now,
		}
		if err := repo.Create(ctx, synthesized); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "synthesize payment")
		}
		return s.afterSettlement(ctx, tx, synthesized, now)
	})
}

// settle marks the payment paid and runs the settlement side effects. The
// conditional update is the only writer allowed to issue the invoice.
func (s *service) settle(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	repo := s.repo.WithTx(tx)

	now := time.Now().UTC()
	applied, err := repo.MarkPaidIfUnpaid(ctx, payment.ID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
	}
	if !applied {
		// Another reconciliation path already settled it.
		return nil
	}
	payment.Status = enums.PaymentStatusPaid
	payment.PaidAt = &now
	return s.afterSettlement(ctx, tx, payment, now)
}

func (s *service) afterSettlement(ctx context.Context, tx *gorm.DB, payment *models.Payment, paidAt time.Time) error {
	repo := s.repo.WithTx(tx)

	invoice := &models.Invoice{
		OrderID:   payment.OrderID,
		PaymentID: payment.ID,
		Number:    nextInvoiceNumber(paidAt),
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		IssuedAt:  paidAt,
	}
	if err := repo.CreateInvoice(ctx, invoice); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue invoice")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: payloads.PaymentSettledEvent{
			PaymentID: payment.ID,
			OrderID:   payment.OrderID,
			Amount:    payment.Amount,
			Currency:  payment.Currency,
			Method:    payment.Method,
			PaidAt:    paidAt,
		},
	}); err != nil {
		return err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInvoiceIssued,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: payloads.InvoiceIssuedEvent{
			InvoiceID: invoice.ID,
			OrderID:   invoice.OrderID,
			PaymentID: invoice.PaymentID,
			Number:    invoice.Number,
			Amount:    invoice.Amount,
			IssuedAt:  invoice.IssuedAt,
		},
	}); err != nil {
		return err
	}

	return s.orders.ConfirmFromPayment(ctx, tx, payment.OrderID)
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}

func defaultedCurrency(currency enums.Currency, fallback string) enums.Currency {
	if currency != "" && currency.IsValid() {
		return currency
	}
	return enums.Currency(fallback)
}

func nextInvoiceNumber(issuedAt time.Time) string {
	return fmt.Sprintf("INV-%08d", issuedAt.UnixMilli()%100_000_000)
}

func shortOrderRef(orderID uuid.UUID) string {
	ref := orderID.String()
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return ref
}

func orderIDFromSession(sess *stripe.CheckoutSession) (uuid.UUID, bool) {
	if sess == nil || sess.Metadata == nil {
		return uuid.Nil, false
	}
	raw, ok := sess.Metadata["order_id"]
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
