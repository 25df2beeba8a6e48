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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Shopify      ShopifyConfig
	Inventory    InventoryConfig
	Returns      ReturnsConfig
	Cron         CronConfig
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
	Env          string `envconfig:"ORDERGENIE_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERGENIE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDERGENIE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ORDERGENIE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ORDERGENIE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"ORDERGENIE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERGENIE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERGENIE_DB_DSN"`
	Driver string `envconfig:"ORDERGENIE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERGENIE_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERGENIE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERGENIE_DB_USER"`
	LegacyPassword string `envconfig:"ORDERGENIE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERGENIE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERGENIE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERGENIE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERGENIE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERGENIE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERGENIE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the embedded driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERGENIE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERGENIE_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERGENIE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERGENIE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERGENIE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERGENIE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERGENIE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERGENIE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERGENIE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ORDERGENIE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERGENIE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDERGENIE_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ORDERGENIE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"ORDERGENIE_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ORDERGENIE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic       string `envconfig:"ORDERGENIE_PUBSUB_ORDERS_TOPIC" default:"og-order-events"`
	NotificationTopic string `envconfig:"ORDERGENIE_PUBSUB_NOTIFICATION_TOPIC" default:"og-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERGENIE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERGENIE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERGENIE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"ORDERGENIE_OUTBOX_RETENTION_DAYS" default:"30"`
}

// ShopifyConfig carries platform credentials for single-shop installs plus
// the resilience settings of the outbound client.
type ShopifyConfig struct {
	APIVersion    string `envconfig:"ORDERGENIE_SHOPIFY_API_VERSION" default:"2024-01"`
	ShopDomain    string `envconfig:"ORDERGENIE_SHOPIFY_SHOP_DOMAIN"`
	AccessToken   string `envconfig:"ORDERGENIE_SHOPIFY_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"ORDERGENIE_SHOPIFY_WEBHOOK_SECRET"`

	Timeout            time.Duration `envconfig:"ORDERGENIE_SHOPIFY_TIMEOUT" default:"10s"`
	MaxRetries         int           `envconfig:"ORDERGENIE_SHOPIFY_MAX_RETRIES" default:"3"`
	RetryBaseDelay     time.Duration `envconfig:"ORDERGENIE_SHOPIFY_RETRY_BASE_DELAY" default:"200ms"`
	BreakerMinRequests uint32        `envconfig:"ORDERGENIE_SHOPIFY_BREAKER_MIN_REQUESTS" default:"5"`
	BreakerFailRatio   float64       `envconfig:"ORDERGENIE_SHOPIFY_BREAKER_FAILURE_RATIO" default:"0.5"`
	BreakerOpenTimeout time.Duration `envconfig:"ORDERGENIE_SHOPIFY_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

type InventoryConfig struct {
	MaxCASAttempts int `envconfig:"ORDERGENIE_INVENTORY_MAX_CAS_ATTEMPTS" default:"5"`
}

type ReturnsConfig struct {
	RestockOnComplete bool `envconfig:"ORDERGENIE_RETURNS_RESTOCK_ON_COMPLETE" default:"false"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"ORDERGENIE_CRON_INTERVAL" default:"1h"`
	LockTTL           time.Duration `envconfig:"ORDERGENIE_CRON_LOCK_TTL" default:"55m"`
	LowStockChannel   string        `envconfig:"ORDERGENIE_CRON_LOW_STOCK_CHANNEL" default:"SLACK"`
	LowStockRecipient string        `envconfig:"ORDERGENIE_CRON_LOW_STOCK_RECIPIENT" default:"#inventory"`
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
