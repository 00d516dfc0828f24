package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Stripe       StripeConfig
	PayPal       PayPalConfig
	NETS         NETSConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"SUPERMART_APP_ENV" required:"true"`
	Port         string `envconfig:"SUPERMART_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"SUPERMART_APP_BASE_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"SUPERMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUPERMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SUPERMART_DB_DSN"`
	Driver string `envconfig:"SUPERMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SUPERMART_DB_HOST"`
	LegacyPort     int    `envconfig:"SUPERMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUPERMART_DB_USER"`
	LegacyPassword string `envconfig:"SUPERMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUPERMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUPERMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUPERMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUPERMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUPERMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUPERMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SUPERMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SUPERMART_REDIS_ADDR"`
	Password     string        `envconfig:"SUPERMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUPERMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUPERMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUPERMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUPERMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUPERMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUPERMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SUPERMART_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SUPERMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SUPERMART_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SUPERMART_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SUPERMART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SUPERMART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SUPERMART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SUPERMART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SUPERMART_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SUPERMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SUPERMART_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig bounds the lifetime of a pending checkout session.
type CheckoutConfig struct {
	SessionTTL time.Duration `envconfig:"SUPERMART_CHECKOUT_SESSION_TTL" default:"30m"`
	LockTTL    time.Duration `envconfig:"SUPERMART_CHECKOUT_LOCK_TTL" default:"15s"`
}

// StripeConfig carries the card-payment credentials. All fields are optional;
// when the key is absent the Stripe payment path reports "not configured".
type StripeConfig struct {
	APIKey     string `envconfig:"SUPERMART_STRIPE_API_KEY"`
	Env        string `envconfig:"SUPERMART_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"SUPERMART_STRIPE_SUCCESS_URL"`
	CancelURL  string `envconfig:"SUPERMART_STRIPE_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PayPalConfig carries the wallet-payment credentials, optional like Stripe's.
type PayPalConfig struct {
	ClientID     string `envconfig:"SUPERMART_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"SUPERMART_PAYPAL_CLIENT_SECRET"`
	BaseURL      string `envconfig:"SUPERMART_PAYPAL_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
	ReturnURL    string `envconfig:"SUPERMART_PAYPAL_RETURN_URL"`
	CancelURL    string `envconfig:"SUPERMART_PAYPAL_CANCEL_URL"`
}

// NETSConfig carries the QR-payment credentials, optional like Stripe's.
type NETSConfig struct {
	APIKey       string        `envconfig:"SUPERMART_NETS_API_KEY"`
	ProjectID    string        `envconfig:"SUPERMART_NETS_PROJECT_ID"`
	BaseURL      string        `envconfig:"SUPERMART_NETS_BASE_URL" default:"https://sandbox.nets.openapipaas.com/api/v1"`
	PollInterval time.Duration `envconfig:"SUPERMART_NETS_POLL_INTERVAL" default:"5s"`
	MaxPolls     int           `envconfig:"SUPERMART_NETS_MAX_POLLS" default:"60"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SUPERMART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"SUPERMART_PUBSUB_ORDERS_TOPIC" default:"supermart-order-events"`
	OrdersSubscription string `envconfig:"SUPERMART_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SUPERMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SUPERMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SUPERMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
