package config

// EnvPrefix scopes envconfig lookups; every field also declares its full
// variable name, which envconfig falls back to.
const EnvPrefix = "DENTALQUOTE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv          = "DENTALQUOTE_APP_ENV"
	EnvPort            = "DENTALQUOTE_APP_PORT"
	EnvDBDSN           = "DENTALQUOTE_DB_DSN"
	EnvDBDriver        = "DENTALQUOTE_DB_DRIVER"
	EnvDBHost          = "DENTALQUOTE_DB_HOST"
	EnvDBUser          = "DENTALQUOTE_DB_USER"
	EnvDBName          = "DENTALQUOTE_DB_NAME"
	EnvRedisURL        = "DENTALQUOTE_REDIS_URL"
	EnvRedisAddr       = "DENTALQUOTE_REDIS_ADDR"
	EnvPersistence     = "DENTALQUOTE_PERSISTENCE"
	EnvSessionTTL      = "DENTALQUOTE_QUOTE_SESSION_TTL"
	EnvCatalogSource   = "DENTALQUOTE_CATALOG_SOURCE"
	EnvDiscountSecret  = "DENTALQUOTE_DISCOUNT_REF_SECRET"
	EnvDiscountIssuer  = "DENTALQUOTE_DISCOUNT_REF_ISSUER"
	EnvAutoMigrate     = "DENTALQUOTE_AUTO_MIGRATE"
	EnvTrustEmbedded   = "DENTALQUOTE_TRUST_EMBEDDED_DISCOUNTS"
	EnvQuoteIdleTTL    = "DENTALQUOTE_QUOTE_IDLE_TTL"
	EnvPromoRateWindow = "DENTALQUOTE_RATE_LIMIT_PROMO_WINDOW"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	PersistenceMemory  = "memory"
	PersistenceRedis   = "redis"
	PersistenceDB      = "db"
	PersistenceLayered = "layered"
)

const (
	CatalogSourceStatic = "static"
	CatalogSourceDB     = "db"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
