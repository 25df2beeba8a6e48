package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "ORDERGENIE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "ORDERGENIE_APP_ENV"
	EnvAppPort  = "ORDERGENIE_APP_PORT"
	EnvLogLevel = "ORDERGENIE_LOG_LEVEL"

	EnvDBDSN    = "ORDERGENIE_DB_DSN"
	EnvDBDriver = "ORDERGENIE_DB_DRIVER"
	EnvDBHost   = "ORDERGENIE_DB_HOST"
	EnvDBUser   = "ORDERGENIE_DB_USER"
	EnvDBName   = "ORDERGENIE_DB_NAME"

	EnvRedisURL = "ORDERGENIE_REDIS_URL"

	EnvJWTSecret            = "ORDERGENIE_JWT_SECRET"
	EnvJWTIssuer            = "ORDERGENIE_JWT_ISSUER"
	EnvJWTExpirationMinutes = "ORDERGENIE_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "ORDERGENIE_GCP_PROJECT_ID"

	EnvShopifyWebhookSecret = "ORDERGENIE_SHOPIFY_WEBHOOK_SECRET"
	EnvShopifyMaxRetries    = "ORDERGENIE_SHOPIFY_MAX_RETRIES"

	EnvReturnsRestockOnComplete = "ORDERGENIE_RETURNS_RESTOCK_ON_COMPLETE"
)

// DBDriverSQLite selects the embedded driver used for local runs.
const DBDriverSQLite = "sqlite"

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
