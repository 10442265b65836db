package routes

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	ordersvc "github.com/kelvinmwangi/farmconnect-backend/internal/orders"
	paymentsvc "github.com/kelvinmwangi/farmconnect-backend/internal/payments"
	payoutssvc "github.com/kelvinmwangi/farmconnect-backend/internal/payouts"
	profilessvc "github.com/kelvinmwangi/farmconnect-backend/internal/profiles"
	transportsvc "github.com/kelvinmwangi/farmconnect-backend/internal/transport"
	stripewebhook "github.com/kelvinmwangi/farmconnect-backend/internal/webhooks/stripe"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/auth"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/config"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	dbtypes "github.com/kelvinmwangi/farmconnect-backend/pkg/db/types"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/pagination"
	pkgredis "github.com/kelvinmwangi/farmconnect-backend/pkg/redis"
	pkgstripe "github.com/kelvinmwangi/farmconnect-backend/pkg/stripe"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubOrdersService struct {
	order *models.Order
}

func (s *stubOrdersService) Create(ctx context.Context, input ordersvc.CreateOrderInput) (*models.Order, error) {
	order := &models.Order{
		ID:       uuid.New(),
		FarmerID: input.FarmerID,
		MarketID: input.MarketID,
		Status:   enums.OrderStatusPending,
		StatusHistory: dbtypes.StatusHistory{
			{Status: enums.OrderStatusPending, Timestamp: time.Now().UTC()},
		},
		TotalAmount: decimal.NewFromInt(750),
		Currency:    enums.CurrencyKES,
	}
	s.order = order
	return order, nil
}

func (s *stubOrdersService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	return s.order, nil
}

func (s *stubOrdersService) List(ctx context.Context, filter ordersvc.ListFilter, params pagination.Params) ([]models.Order, error) {
	if s.order == nil {
		return nil, nil
	}
	return []models.Order{*s.order}, nil
}

func (s *stubOrdersService) Transition(ctx context.Context, input ordersvc.TransitionInput) (*models.Order, error) {
	if s.order == nil {
		return nil, fmt.Errorf("order %s not found", input.OrderID)
	}
	s.order.Status = input.NewStatus
	return s.order, nil
}

func (s *stubOrdersService) ConfirmFromPayment(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	return nil
}

type stubPaymentsService struct {
	reconciled []paymentsvc.ReconcileSessionInput
}

func (s *stubPaymentsService) CreateCheckoutSession(ctx context.Context, input paymentsvc.CreateCheckoutSessionInput) (*paymentsvc.CheckoutSessionResult, error) {
	return &paymentsvc.CheckoutSessionResult{
		URL:       "https://stripe.test/session",
		SessionID: "cs_test_123",
	}, nil
}

func (s *stubPaymentsService) GetSessionStatus(ctx context.Context, sessionID string) (*paymentsvc.SessionStatus, error) {
	return &paymentsvc.SessionStatus{
		Status:  enums.PaymentStatusUnpaid.String(),
		Session: &stripe.CheckoutSession{ID: sessionID},
	}, nil
}

func (s *stubPaymentsService) ProcessPayment(ctx context.Context, paymentID, marketID uuid.UUID) (*models.Payment, error) {
	now := time.Now().UTC()
	return &models.Payment{
		ID:       paymentID,
		OrderID:  uuid.New(),
		MarketID: &marketID,
		Amount:   decimal.NewFromInt(750),
		Currency: enums.CurrencyKES,
		Method:   enums.PaymentMethodCard,
		Status:   enums.PaymentStatusPaid,
		PaidAt:   &now,
	}, nil
}

func (s *stubPaymentsService) ReconcileSession(ctx context.Context, input paymentsvc.ReconcileSessionInput) error {
	s.reconciled = append(s.reconciled, input)
	return nil
}

func (s *stubPaymentsService) ListForActor(ctx context.Context, actorID uuid.UUID, role enums.ActorRole, params pagination.Params) ([]models.Payment, error) {
	return nil, nil
}

type stubPayoutsService struct{}

func (stubPayoutsService) CreateForDelivery(ctx context.Context, input payoutssvc.DeliveredOrderInput) error {
	return nil
}

func (stubPayoutsService) CreatePayoutForRecipient(ctx context.Context, orderID, recipientID uuid.UUID, recipientType enums.RecipientType, amount decimal.Decimal, currency enums.Currency) error {
	return nil
}

func (stubPayoutsService) Earnings(ctx context.Context, recipientID uuid.UUID) (decimal.Decimal, error) {
	return decimal.RequireFromString("1234.56"), nil
}

type stubProfilesService struct{}

func (stubProfilesService) Resolve(ctx context.Context, role enums.ActorRole, actorID uuid.UUID) (*profilessvc.Profile, error) {
	return &profilessvc.Profile{
		Kind:   enums.ActorRoleFarmer,
		Farmer: &models.Farmer{ID: actorID, Name: "Wanjiku Farm"},
	}, nil
}

type stubTransportService struct{}

func (stubTransportService) Quotes(ctx context.Context, input transportsvc.QuoteInput) ([]transportsvc.Quote, error) {
	return []transportsvc.Quote{
		{
			TransporterID:   uuid.New(),
			TransporterName: "Transporter A",
			TotalCost:       decimal.RequireFromString("197.5"),
			EstimatedTime:   "4h0m",
		},
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
		RateLimit: config.RateLimitConfig{
			CheckoutWindow:     time.Minute,
			CheckoutIPLimit:    30,
			CheckoutOrderLimit: 10,
		},
	}
}

type routerFixture struct {
	router   http.Handler
	cfg      *config.Config
	orders   *stubOrdersService
	payments *stubPaymentsService
}

func newTestRouter(t *testing.T) *routerFixture {
	t.Helper()
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "router-test", Level: logger.ParseLevel("debug"), Output: io.Discard})

	orders := &stubOrdersService{}
	payments := &stubPaymentsService{}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Payments: payments})
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}
	guard, err := stripewebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "stripe-webhook")
	if err != nil {
		t.Fatalf("webhook guard: %v", err)
	}
	stripeClient, err := pkgstripe.NewClient(context.Background(), config.StripeConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: "whsec_test",
		Env:           "test",
	}, nil)
	if err != nil {
		t.Fatalf("stripe client: %v", err)
	}

	router := NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*pkgredis.Client)(nil),
		orders,
		payments,
		stubPayoutsService{},
		stubTransportService{},
		stubProfilesService{},
		stripeClient,
		webhookSvc,
		guard,
	)

	return &routerFixture{router: router, cfg: cfg, orders: orders, payments: payments}
}

func bearerToken(t *testing.T, cfg *config.Config, actorID uuid.UUID, role enums.ActorRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		ActorID: actorID,
		Role:    role,
		JTI:     uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	f := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("X-FarmConnect-Env") != "test" {
		t.Fatalf("missing environment header")
	}
}

func TestProtectedGroupRejectsMissingJWT(t *testing.T) {
	f := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
}

func TestCreateOrderRequiresMarketRole(t *testing.T) {
	f := newTestRouter(t)
	body := `{"farmer_id":"` + uuid.NewString() + `","items":[{"produce_name":"Tomatoes","quantity":"50","unit_price":"12"}]}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, f.cfg, uuid.New(), enums.ActorRoleFarmer))
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for farmer, got %d (%s)", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, f.cfg, uuid.New(), enums.ActorRoleMarket))
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for market, got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestOrderLifecycleRoutes(t *testing.T) {
	f := newTestRouter(t)
	marketID := uuid.New()
	token := bearerToken(t, f.cfg, marketID, enums.ActorRoleMarket)

	body := `{"farmer_id":"` + uuid.NewString() + `","items":[{"produce_name":"Kale","quantity":"10","unit_price":"5"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create failed: %d (%s)", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("list failed: %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+f.orders.order.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("get failed: %d (%s)", resp.Code, resp.Body.String())
	}

	transition := `{"status":"cancelled","note":"changed plans"}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+f.orders.order.ID.String()+"/transition", strings.NewReader(transition))
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("transition failed: %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestTransportQuotesRoute(t *testing.T) {
	f := newTestRouter(t)
	body := `{"distance_km":"120","needs_refrigeration":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transport/quotes", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, f.cfg, uuid.New(), enums.ActorRoleMarket))
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "Transporter A") {
		t.Fatalf("quote missing from response: %s", resp.Body.String())
	}
}

func TestEarningsRequiresRecipientRole(t *testing.T) {
	f := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/earnings", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, f.cfg, uuid.New(), enums.ActorRoleMarket))
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for market, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/earnings", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, f.cfg, uuid.New(), enums.ActorRoleFarmer))
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for farmer, got %d (%s)", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "1234.56") {
		t.Fatalf("earnings total missing: %s", resp.Body.String())
	}
}

func TestMeReturnsResolvedProfile(t *testing.T) {
	f := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, f.cfg, uuid.New(), enums.ActorRoleFarmer))
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "Wanjiku Farm") {
		t.Fatalf("profile name missing: %s", resp.Body.String())
	}
}

func TestCheckoutSessionEndpointValidation(t *testing.T) {
	f := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/create-checkout-session", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", resp.Code)
	}

	body := `{"orderId":"` + uuid.NewString() + `","amount":"750"}`
	req = httptest.NewRequest(http.MethodPost, "/api/stripe/create-checkout-session", strings.NewReader(body))
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "cs_test_123") {
		t.Fatalf("session id missing: %s", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stripe/create-checkout-session", nil)
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", resp.Code)
	}
}

func TestSessionStatusRequiresSessionID(t *testing.T) {
	f := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stripe/session", nil)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without sessionId, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stripe/session?sessionId=cs_test_123", nil)
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestWebhookRouteVerifiesSignature(t *testing.T) {
	f := newTestRouter(t)
	payload := signedWebhookPayload(t)

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload.body))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", resp.Code)
	}
	if len(f.payments.reconciled) != 0 {
		t.Fatalf("reconciliation ran despite bad signature")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload.body))
	req.Header.Set("Stripe-Signature", payload.header)
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if len(f.payments.reconciled) != 1 {
		t.Fatalf("expected one reconciliation, got %d", len(f.payments.reconciled))
	}
}

type webhookPayload struct {
	body   []byte
	header string
}

func signedWebhookPayload(t *testing.T) webhookPayload {
	t.Helper()
	session := &stripe.CheckoutSession{
		ID:          "cs_test_" + uuid.NewString(),
		AmountTotal: 75000,
		Currency:    stripe.CurrencyKES,
		Metadata:    map[string]string{"order_id": uuid.NewString()},
	}
	rawSession, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: rawSession},
	}
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	ts := time.Now().Unix()
	signedPayload := fmt.Sprintf("%d.%s", ts, body)
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write([]byte(signedPayload))
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
	return webhookPayload{body: body, header: header}
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fc:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
