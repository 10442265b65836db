package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kelvinmwangi/farmconnect-backend/api/controllers"
	webhookcontrollers "github.com/kelvinmwangi/farmconnect-backend/api/controllers/webhooks"
	"github.com/kelvinmwangi/farmconnect-backend/api/middleware"
	"github.com/kelvinmwangi/farmconnect-backend/internal/orders"
	"github.com/kelvinmwangi/farmconnect-backend/internal/payments"
	"github.com/kelvinmwangi/farmconnect-backend/internal/payouts"
	"github.com/kelvinmwangi/farmconnect-backend/internal/profiles"
	"github.com/kelvinmwangi/farmconnect-backend/internal/transport"
	stripewebhook "github.com/kelvinmwangi/farmconnect-backend/internal/webhooks/stripe"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/config"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/db"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/redis"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersService orders.Service,
	paymentsService payments.Service,
	payoutsService payouts.Service,
	transportService transport.Service,
	profilesService profiles.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	// Typed-nil *redis.Client slips past interface nil checks, so the
	// redis-backed pieces are only wired when a client is present.
	var idempotencyStore redis.IdempotencyStore
	var cachePinger redis.Pinger
	checkoutLimiter := func(next http.Handler) http.Handler { return next }
	if redisClient != nil {
		idempotencyStore = redisClient
		cachePinger = redisClient
		checkoutPolicy := middleware.NewRateLimitPolicy(
			"checkout",
			cfg.RateLimit.CheckoutWindow,
			cfg.RateLimit.CheckoutIPLimit,
			cfg.RateLimit.CheckoutOrderLimit,
		)
		checkoutLimiter = middleware.RateLimit(checkoutPolicy, redisClient, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cachePinger))
	})

	// Public payment surface. The payment page talks to these before the
	// buyer is signed in, so they carry rate limits instead of auth.
	r.Route("/api/stripe", func(r chi.Router) {
		r.With(checkoutLimiter).
			Post("/create-checkout-session", controllers.CreateCheckoutSession(paymentsService, logg))
		r.Get("/session", controllers.GetCheckoutSessionStatus(paymentsService, logg))
		r.Post("/webhook", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersService, logg))
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/{orderID}", controllers.GetOrder(ordersService, logg))
			r.Post("/{orderID}/transition", controllers.TransitionOrder(ordersService, logg))
		})

		r.Post("/transport/quotes", controllers.TransportQuotes(transportService, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", controllers.ListPayments(paymentsService, logg))
			r.Post("/{paymentID}/pay", controllers.PayNow(paymentsService, logg))
		})

		r.Get("/earnings", controllers.Earnings(payoutsService, logg))
		r.Get("/me", controllers.Me(profilesService, logg))
	})

	return r
}
