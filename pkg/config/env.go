package config

// EnvPrefix is handed to envconfig; every field carries an explicit name so the
// prefix only matters for fields without one.
const EnvPrefix = "SRR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "SRR_APP_ENV"
	EnvPort     = "SRR_APP_PORT"
	EnvLogLevel = "SRR_LOG_LEVEL"

	EnvDBDSN    = "SRR_DB_DSN"
	EnvDBDriver = "SRR_DB_DRIVER"
	EnvDBHost   = "SRR_DB_HOST"
	EnvDBUser   = "SRR_DB_USER"
	EnvDBName   = "SRR_DB_NAME"

	EnvRedisURL = "SRR_REDIS_URL"

	EnvJWTSecret  = "SRR_JWT_SECRET"
	EnvJWTIssuer  = "SRR_JWT_ISSUER"
	EnvJWTExpMins = "SRR_JWT_EXPIRATION_MINUTES"

	EnvCheckoutShippingFee = "SRR_CHECKOUT_SHIPPING_FEE"
	EnvCheckoutTaxRate     = "SRR_CHECKOUT_TAX_RATE"

	EnvGCSBucket = "SRR_GCS_BUCKET_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
