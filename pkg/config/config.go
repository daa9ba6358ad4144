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
	Quote        QuoteConfig
	Discounts    DiscountsConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Quote.validate(); err != nil {
		return nil, err
	}
	// Promotions and submissions always live in the database.
	if err := cfg.DB.EnsureDSN(); err != nil {
		return nil, err
	}
	if cfg.Quote.needsRedis() && cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("%s or %s is required for %s persistence", EnvRedisURL, EnvRedisAddr, cfg.Quote.Persistence)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DENTALQUOTE_APP_ENV" required:"true"`
	Port         string `envconfig:"DENTALQUOTE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DENTALQUOTE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DENTALQUOTE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DENTALQUOTE_DB_DSN"`
	Driver string `envconfig:"DENTALQUOTE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DENTALQUOTE_DB_HOST"`
	LegacyPort     int    `envconfig:"DENTALQUOTE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DENTALQUOTE_DB_USER"`
	LegacyPassword string `envconfig:"DENTALQUOTE_DB_PASSWORD"`
	LegacyName     string `envconfig:"DENTALQUOTE_DB_NAME"`
	LegacySSLMode  string `envconfig:"DENTALQUOTE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DENTALQUOTE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DENTALQUOTE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DENTALQUOTE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DENTALQUOTE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"DENTALQUOTE_REDIS_URL"`
	Address      string        `envconfig:"DENTALQUOTE_REDIS_ADDR"`
	Password     string        `envconfig:"DENTALQUOTE_REDIS_PASSWORD"`
	DB           int           `envconfig:"DENTALQUOTE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DENTALQUOTE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DENTALQUOTE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DENTALQUOTE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DENTALQUOTE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DENTALQUOTE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// QuoteConfig controls where quote state lives and how long a session survives.
// SessionTTL bounds redis entries and SnapshotTTL bounds durable snapshots.
type QuoteConfig struct {
	Persistence   string        `envconfig:"DENTALQUOTE_PERSISTENCE" default:"memory"`
	SessionTTL    time.Duration `envconfig:"DENTALQUOTE_QUOTE_SESSION_TTL" default:"72h"`
	SnapshotTTL   time.Duration `envconfig:"DENTALQUOTE_QUOTE_SNAPSHOT_TTL" default:"720h"`
	CatalogSource string        `envconfig:"DENTALQUOTE_CATALOG_SOURCE" default:"static"`
	// IdleTTL is how long an untouched quote stays loaded in process.
	IdleTTL time.Duration `envconfig:"DENTALQUOTE_QUOTE_IDLE_TTL" default:"30m"`
}

func (q QuoteConfig) needsRedis() bool {
	return q.Persistence == PersistenceRedis || q.Persistence == PersistenceLayered
}

// NeedsRedis reports whether quote sessions are cached in redis.
// Redis-backed idempotency and rate limits also switch on when it is set.
func (q QuoteConfig) NeedsRedis() bool {
	return q.needsRedis()
}

func (q QuoteConfig) validate() error {
	switch q.Persistence {
	case PersistenceMemory, PersistenceRedis, PersistenceDB, PersistenceLayered:
	default:
		return fmt.Errorf("%s must be one of memory|redis|db|layered, got %q", EnvPersistence, q.Persistence)
	}
	switch q.CatalogSource {
	case CatalogSourceStatic, CatalogSourceDB:
	default:
		return fmt.Errorf("%s must be one of static|db, got %q", EnvCatalogSource, q.CatalogSource)
	}
	return nil
}

// DiscountsConfig carries the signing material for discount reference tokens
// embedded in landing-page URLs.
type DiscountsConfig struct {
	RefSecret string `envconfig:"DENTALQUOTE_DISCOUNT_REF_SECRET"`
	RefIssuer string `envconfig:"DENTALQUOTE_DISCOUNT_REF_ISSUER" default:"mydentalfly"`
}

// RefTokensEnabled reports whether signed discount references can be verified.
func (d DiscountsConfig) RefTokensEnabled() bool {
	return strings.TrimSpace(d.RefSecret) != ""
}

type RateLimitConfig struct {
	PromoWindow   time.Duration `envconfig:"DENTALQUOTE_RATE_LIMIT_PROMO_WINDOW" default:"10m"`
	PromoIPLimit  int           `envconfig:"DENTALQUOTE_RATE_LIMIT_PROMO_IP_LIMIT" default:"30"`
	PromoKeyLimit int           `envconfig:"DENTALQUOTE_RATE_LIMIT_PROMO_QUOTE_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DENTALQUOTE_AUTO_MIGRATE" default:"false"`
	// TrustEmbeddedDiscounts accepts unsigned offer and package data from
	// entry URLs and action payloads.
	TrustEmbeddedDiscounts bool `envconfig:"DENTALQUOTE_TRUST_EMBEDDED_DISCOUNTS" default:"false"`
}

// EnsureDSN fills DSN from the discrete connection settings when it is unset.
func (db *DBConfig) EnsureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
