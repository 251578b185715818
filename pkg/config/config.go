package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

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
	Tenancy      TenancyConfig
	Checkout     CheckoutConfig
	Mail         MailConfig
	Invoice      InvoiceConfig
	SideEffects  SideEffectsConfig
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
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies admin tokens minted by the owner panel.
type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL  time.Duration `envconfig:"STOREFRONT_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	ConsumerIdempotencyTTL time.Duration `envconfig:"STOREFRONT_EVENTING_CONSUMER_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic         string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"sf-order-events"`
	OrdersSubscription  string `envconfig:"STOREFRONT_PUBSUB_ORDERS_SUBSCRIPTION"`
	TenantsTopic        string `envconfig:"STOREFRONT_PUBSUB_TENANTS_TOPIC" default:"sf-tenant-events"`
	TenantsSubscription string `envconfig:"STOREFRONT_PUBSUB_TENANTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey         string        `envconfig:"STOREFRONT_STRIPE_API_KEY"`
	Secret         string        `envconfig:"STOREFRONT_STRIPE_SECRET"`
	Env            string        `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
	Currency       string        `envconfig:"STOREFRONT_STRIPE_CURRENCY" default:"eur"`
	RequestTimeout time.Duration `envconfig:"STOREFRONT_STRIPE_REQUEST_TIMEOUT" default:"15s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type TenancyConfig struct {
	CacheTTL    time.Duration `envconfig:"STOREFRONT_TENANT_CACHE_TTL" default:"5m"`
	PlatformURL string        `envconfig:"STOREFRONT_PLATFORM_FRONTEND_URL" default:"http://localhost:3000"`
}

type CheckoutConfig struct {
	OrderNumberPrefix     string `envconfig:"STOREFRONT_ORDER_NUMBER_PREFIX" default:"ND"`
	HomeCountry           string `envconfig:"STOREFRONT_HOME_COUNTRY" default:"BE"`
	DomesticShipping      string `envconfig:"STOREFRONT_SHIPPING_DOMESTIC" default:"5.95"`
	InternationalShipping string `envconfig:"STOREFRONT_SHIPPING_INTERNATIONAL" default:"9.95"`
	VATRatePercent        string `envconfig:"STOREFRONT_VAT_RATE_PERCENT" default:"21"`
	SuccessURL            string `envconfig:"STOREFRONT_CHECKOUT_SUCCESS_URL"`
	CancelURL             string `envconfig:"STOREFRONT_CHECKOUT_CANCEL_URL"`
}

// ShippingRates parses the configured flat rates.
func (c CheckoutConfig) ShippingRates() (domestic, international decimal.Decimal, err error) {
	domestic, err = decimal.NewFromString(c.DomesticShipping)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parsing %s: %w", EnvShippingDomestic, err)
	}
	international, err = decimal.NewFromString(c.InternationalShipping)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parsing %s: %w", EnvShippingInternational, err)
	}
	return domestic, international, nil
}

// VATRate parses the configured VAT percentage.
func (c CheckoutConfig) VATRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.VATRatePercent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvVATRatePercent, err)
	}
	return rate, nil
}

func (c CheckoutConfig) validate() error {
	domestic, international, err := c.ShippingRates()
	if err != nil {
		return err
	}
	if domestic.IsNegative() || international.IsNegative() {
		return fmt.Errorf("shipping rates must be non-negative")
	}
	rate, err := c.VATRate()
	if err != nil {
		return err
	}
	if rate.IsNegative() {
		return fmt.Errorf("vat rate must be non-negative")
	}
	return nil
}

type MailConfig struct {
	Host     string `envconfig:"STOREFRONT_SMTP_HOST"`
	Port     int    `envconfig:"STOREFRONT_SMTP_PORT" default:"587"`
	Username string `envconfig:"STOREFRONT_SMTP_USERNAME"`
	Password string `envconfig:"STOREFRONT_SMTP_PASSWORD"`
	From     string `envconfig:"STOREFRONT_SMTP_FROM" default:"no-reply@localhost"`
}

// Enabled reports whether an SMTP relay is configured.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != ""
}

type InvoiceConfig struct {
	IssuerName    string `envconfig:"STOREFRONT_INVOICE_ISSUER_NAME" default:"Storefront"`
	IssuerAddress string `envconfig:"STOREFRONT_INVOICE_ISSUER_ADDRESS"`
	IssuerVATID   string `envconfig:"STOREFRONT_INVOICE_ISSUER_VAT_ID"`
}

type RateLimitConfig struct {
	CheckoutWindow     time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_WINDOW" default:"10m"`
	CheckoutIPLimit    int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_IP" default:"30"`
	CheckoutEmailLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_EMAIL" default:"10"`
	TrackWindow        time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_TRACK_WINDOW" default:"1m"`
	TrackIPLimit       int           `envconfig:"STOREFRONT_RATE_LIMIT_TRACK_IP" default:"60"`
}

type SideEffectsConfig struct {
	Workers     int           `envconfig:"STOREFRONT_SIDE_EFFECTS_WORKERS" default:"4"`
	QueueSize   int           `envconfig:"STOREFRONT_SIDE_EFFECTS_QUEUE_SIZE" default:"256"`
	TaskTimeout time.Duration `envconfig:"STOREFRONT_SIDE_EFFECTS_TASK_TIMEOUT" default:"30s"`
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
