package config

// EnvPrefix is passed to envconfig; every field also carries its full ORDO_* key.
const EnvPrefix = "ORDO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "ORDO_APP_ENV"
	EnvPort        = "ORDO_APP_PORT"
	EnvLogLevel    = "ORDO_LOG_LEVEL"
	EnvServiceKind = "ORDO_SERVICE_KIND"

	EnvDBDSN    = "ORDO_DB_DSN"
	EnvDBDriver = "ORDO_DB_DRIVER"
	EnvDBHost   = "ORDO_DB_HOST"
	EnvDBUser   = "ORDO_DB_USER"
	EnvDBName   = "ORDO_DB_NAME"

	EnvRedisURL = "ORDO_REDIS_URL"

	EnvCredentialsSecret = "ORDO_CREDENTIALS_SECRET"
	EnvJWTSecret         = "ORDO_JWT_SECRET"
	EnvGroupingThreshold = "ORDO_GROUPING_THRESHOLD"
	EnvFakeCheckout      = "ORDO_FEATURE_FAKE_CHECKOUT"

	EnvGCPProjectID        = "ORDO_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic   = "ORDO_PUBSUB_ORDERS_TOPIC"
	EnvPubSubCatalogTopic  = "ORDO_PUBSUB_CATALOG_TOPIC"
	EnvVendorHTTPTimeout   = "ORDO_VENDOR_HTTP_TIMEOUT"
	EnvVendorSandboxURL    = "ORDO_VENDOR_SANDBOX_URL"
	EnvOrderStatusCheckTTL = "ORDO_ORDER_STATUS_CHECK_DELAY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
