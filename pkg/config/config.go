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
	Service      ServiceConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Credentials  CredentialsConfig
	Vendors      VendorsConfig
	Pricing      PricingConfig
	Grouping     GroupingConfig
	Orders       OrdersConfig
	Cron         CronConfig
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
	if cfg.Grouping.Threshold <= 0 || cfg.Grouping.Threshold > 1 {
		return nil, fmt.Errorf("%s must be in (0, 1], got %v", EnvGroupingThreshold, cfg.Grouping.Threshold)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDO_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDO_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ORDO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDO_SERVICE_KIND" default:"api"`
}

// JWTConfig verifies access tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"ORDO_JWT_SECRET"`
	Issuer            string `envconfig:"ORDO_JWT_ISSUER" default:"ordo"`
	ExpirationMinutes int    `envconfig:"ORDO_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig throttles endpoints that fan out to vendor sites.
type RateLimitConfig struct {
	Window      time.Duration `envconfig:"ORDO_RATE_LIMIT_WINDOW" default:"1m"`
	OfficeLimit int           `envconfig:"ORDO_RATE_LIMIT_OFFICE" default:"30"`
	IPLimit     int           `envconfig:"ORDO_RATE_LIMIT_IP" default:"60"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDO_DB_DSN"`
	Driver string `envconfig:"ORDO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDO_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDO_DB_USER"`
	LegacyPassword string `envconfig:"ORDO_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDO_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDO_REDIS_ADDR"`
	Password     string        `envconfig:"ORDO_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate   bool `envconfig:"ORDO_AUTO_MIGRATE" default:"false"`
	FakeCheckout  bool `envconfig:"ORDO_FEATURE_FAKE_CHECKOUT" default:"false"`
	SandboxVendor bool `envconfig:"ORDO_FEATURE_SANDBOX_VENDOR" default:"false"`
}

// CredentialsConfig holds the secret vendor passwords are sealed with.
type CredentialsConfig struct {
	Secret           string `envconfig:"ORDO_CREDENTIALS_SECRET" required:"true"`
	ArgonMemoryKB    int    `envconfig:"ORDO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int    `envconfig:"ORDO_ARGON_TIME" default:"3"`
	ArgonParallelism int    `envconfig:"ORDO_ARGON_PARALLELISM" default:"2"`
}

type VendorsConfig struct {
	HTTPTimeout time.Duration `envconfig:"ORDO_VENDOR_HTTP_TIMEOUT" default:"30s"`
	RetryCount  int           `envconfig:"ORDO_VENDOR_RETRY_COUNT" default:"2"`
	UserAgent   string        `envconfig:"ORDO_VENDOR_USER_AGENT" default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"`
	ProxyURL    string        `envconfig:"ORDO_VENDOR_PROXY_URL"`
	SandboxURL  string        `envconfig:"ORDO_VENDOR_SANDBOX_URL"`
}

type PricingConfig struct {
	QueueSize        int           `envconfig:"ORDO_PRICING_QUEUE_SIZE" default:"20"`
	AttemptThreshold int           `envconfig:"ORDO_PRICING_ATTEMPT_THRESHOLD" default:"3"`
	BulkSize         int           `envconfig:"ORDO_PRICING_BULK_SIZE" default:"500"`
	StatWindow       time.Duration `envconfig:"ORDO_PRICING_STAT_WINDOW" default:"20s"`
	Vendors          []string      `envconfig:"ORDO_PRICING_VENDORS"`
}

type GroupingConfig struct {
	Threshold float64 `envconfig:"ORDO_GROUPING_THRESHOLD" default:"0.65"`
}

type OrdersConfig struct {
	StatusCheckDelay time.Duration `envconfig:"ORDO_ORDER_STATUS_CHECK_DELAY" default:"72h"`
	CheckoutLockTTL  time.Duration `envconfig:"ORDO_ORDER_CHECKOUT_LOCK_TTL" default:"5m"`
	StatusCheckBatch int           `envconfig:"ORDO_ORDER_STATUS_CHECK_BATCH" default:"50"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ORDO_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"ORDO_CRON_LOCK_TTL" default:"30m"`

	// OutboxRetention bounds how long published outbox rows are kept.
	OutboxRetention time.Duration `envconfig:"ORDO_CRON_OUTBOX_RETENTION" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ORDO_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic  string `envconfig:"ORDO_PUBSUB_ORDERS_TOPIC" default:"ordo-order-events"`
	CatalogTopic string `envconfig:"ORDO_PUBSUB_CATALOG_TOPIC" default:"ordo-catalog-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDO_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
