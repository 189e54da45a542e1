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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	Idempotency  IdempotencyConfig
	Uploads      UploadConfig
	GCP          GCPConfig
	GCS          GCSConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"SRR_APP_ENV" required:"true"`
	Port         string `envconfig:"SRR_APP_PORT" default:"5000"`
	LogLevel     string `envconfig:"SRR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SRR_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SRR_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SRR_DB_DSN"`
	Driver string `envconfig:"SRR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SRR_DB_HOST"`
	LegacyPort     int    `envconfig:"SRR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SRR_DB_USER"`
	LegacyPassword string `envconfig:"SRR_DB_PASSWORD"`
	LegacyName     string `envconfig:"SRR_DB_NAME"`
	LegacySSLMode  string `envconfig:"SRR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SRR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SRR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SRR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SRR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the local-development SQLite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"SRR_REDIS_URL"`
	Address      string        `envconfig:"SRR_REDIS_ADDR"`
	Password     string        `envconfig:"SRR_REDIS_PASSWORD"`
	DB           int           `envconfig:"SRR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SRR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SRR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SRR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SRR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SRR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SRR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SRR_JWT_ISSUER" default:"srr-farms"`
	ExpirationMinutes int    `envconfig:"SRR_JWT_EXPIRATION_MINUTES" default:"10080"`
}

// AccessTTL returns the configured access token lifetime.
func (j JWTConfig) AccessTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// CheckoutConfig holds the pricing and locking knobs used when an order is placed.
type CheckoutConfig struct {
	ShippingFee         int64         `envconfig:"SRR_CHECKOUT_SHIPPING_FEE" default:"50"`
	TaxRate             string        `envconfig:"SRR_CHECKOUT_TAX_RATE" default:"0.05"`
	LockTTL             time.Duration `envconfig:"SRR_CHECKOUT_LOCK_TTL" default:"10s"`
	OrderNumberAttempts int           `envconfig:"SRR_CHECKOUT_ORDER_NUMBER_ATTEMPTS" default:"3"`
}

// Tax returns the parsed tax rate.
func (c CheckoutConfig) Tax() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (c CheckoutConfig) validate() error {
	if c.ShippingFee < 0 {
		return fmt.Errorf("%s must not be negative", EnvCheckoutShippingFee)
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvCheckoutTaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1)", EnvCheckoutTaxRate)
	}
	return nil
}

type RateLimitConfig struct {
	Window time.Duration `envconfig:"SRR_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"SRR_RATE_LIMIT_LIMIT" default:"120"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"SRR_IDEMPOTENCY_TTL" default:"168h"`
}

type UploadConfig struct {
	MaxUploadMB int    `envconfig:"SRR_MAX_UPLOAD_MB" default:"5"`
	ProofPrefix string `envconfig:"SRR_PAYMENT_PROOF_PREFIX" default:"payment-proofs"`
}

// MaxBytes returns the upload cap in bytes.
func (u UploadConfig) MaxBytes() int64 {
	if u.MaxUploadMB <= 0 {
		return 5 << 20
	}
	return int64(u.MaxUploadMB) << 20
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SRR_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SRR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SRR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"SRR_GCS_BUCKET_NAME" required:"true"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SRR_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SRR_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:srr_dev.db?cache=shared"
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
