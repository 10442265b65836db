package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "FARMCONNECT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv              = "FARMCONNECT_APP_ENV"
	EnvPort                = "FARMCONNECT_APP_PORT"
	EnvDBDSN               = "FARMCONNECT_DB_DSN"
	EnvDBHost              = "FARMCONNECT_DB_HOST"
	EnvDBUser              = "FARMCONNECT_DB_USER"
	EnvDBName              = "FARMCONNECT_DB_NAME"
	EnvRedisURL            = "FARMCONNECT_REDIS_URL"
	EnvJWTSecret           = "FARMCONNECT_JWT_SECRET"
	EnvJWTIssuer           = "FARMCONNECT_JWT_ISSUER"
	EnvJWTExpMins          = "FARMCONNECT_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID        = "FARMCONNECT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic   = "FARMCONNECT_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub     = "FARMCONNECT_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvStripeAPIKey        = "FARMCONNECT_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "FARMCONNECT_STRIPE_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	Payments     PaymentsConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FARMCONNECT_APP_ENV" required:"true"`
	Port         string `envconfig:"FARMCONNECT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FARMCONNECT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FARMCONNECT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FARMCONNECT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FARMCONNECT_DB_DSN"`
	Driver string `envconfig:"FARMCONNECT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FARMCONNECT_DB_HOST"`
	LegacyPort     int    `envconfig:"FARMCONNECT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FARMCONNECT_DB_USER"`
	LegacyPassword string `envconfig:"FARMCONNECT_DB_PASSWORD"`
	LegacyName     string `envconfig:"FARMCONNECT_DB_NAME"`
	LegacySSLMode  string `envconfig:"FARMCONNECT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMCONNECT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMCONNECT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMCONNECT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMCONNECT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMCONNECT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FARMCONNECT_REDIS_ADDR"`
	Password     string        `envconfig:"FARMCONNECT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMCONNECT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMCONNECT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMCONNECT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMCONNECT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMCONNECT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMCONNECT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FARMCONNECT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FARMCONNECT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FARMCONNECT_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// Expiration returns the access token TTL configured in minutes.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FARMCONNECT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FARMCONNECT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"FARMCONNECT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookGuardTTL      time.Duration `envconfig:"FARMCONNECT_EVENTING_WEBHOOK_GUARD_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FARMCONNECT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"FARMCONNECT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FARMCONNECT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"FARMCONNECT_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"FARMCONNECT_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FARMCONNECT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FARMCONNECT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FARMCONNECT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"FARMCONNECT_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"FARMCONNECT_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"FARMCONNECT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PaymentsConfig struct {
	PublicBaseURL   string `envconfig:"FARMCONNECT_PAYMENTS_PUBLIC_BASE_URL" default:"http://localhost:3000"`
	DefaultCurrency string `envconfig:"FARMCONNECT_PAYMENTS_DEFAULT_CURRENCY" default:"KES"`
}

// RateLimitConfig throttles the unauthenticated checkout surface.
type RateLimitConfig struct {
	CheckoutWindow     time.Duration `envconfig:"FARMCONNECT_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit    int           `envconfig:"FARMCONNECT_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"30"`
	CheckoutOrderLimit int           `envconfig:"FARMCONNECT_RATE_LIMIT_CHECKOUT_ORDER_LIMIT" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
