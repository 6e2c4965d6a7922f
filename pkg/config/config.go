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
	Pricing      PricingConfig
	Orders       OrdersConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DAILYCART_APP_ENV" required:"true"`
	Port         string `envconfig:"DAILYCART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DAILYCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DAILYCART_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"DAILYCART_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"DAILYCART_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DAILYCART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"DAILYCART_DB_DSN"`

	Host     string `envconfig:"DAILYCART_DB_HOST"`
	Port     int    `envconfig:"DAILYCART_DB_PORT" default:"5432"`
	User     string `envconfig:"DAILYCART_DB_USER"`
	Password string `envconfig:"DAILYCART_DB_PASSWORD"`
	Name     string `envconfig:"DAILYCART_DB_NAME"`
	SSLMode  string `envconfig:"DAILYCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DAILYCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DAILYCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DAILYCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DAILYCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DAILYCART_REDIS_URL"`
	Address      string        `envconfig:"DAILYCART_REDIS_ADDR"`
	Password     string        `envconfig:"DAILYCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"DAILYCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DAILYCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DAILYCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DAILYCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DAILYCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DAILYCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"DAILYCART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DAILYCART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DAILYCART_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PricingConfig drives the delivery charge tiers applied to every cart.
type PricingConfig struct {
	MinOrderAmount        decimal.Decimal `envconfig:"DAILYCART_PRICING_MIN_ORDER_AMOUNT" default:"99"`
	FreeDeliveryThreshold decimal.Decimal `envconfig:"DAILYCART_PRICING_FREE_DELIVERY_THRESHOLD" default:"299"`
	DeliveryFee           decimal.Decimal `envconfig:"DAILYCART_PRICING_DELIVERY_FEE" default:"29"`
}

func (p PricingConfig) validate() error {
	if p.MinOrderAmount.IsNegative() || p.DeliveryFee.IsNegative() {
		return fmt.Errorf("pricing amounts must not be negative")
	}
	if p.FreeDeliveryThreshold.LessThan(p.MinOrderAmount) {
		return fmt.Errorf("%s must be >= %s", EnvPricingFreeDelivery, EnvPricingMinOrder)
	}
	return nil
}

type OrdersConfig struct {
	DeliveryLeadTime   time.Duration `envconfig:"DAILYCART_ORDERS_DELIVERY_LEAD_TIME" default:"2h"`
	LoyaltyAmountPerPt int64         `envconfig:"DAILYCART_ORDERS_LOYALTY_AMOUNT_PER_POINT" default:"10"`
	PendingTTL         time.Duration `envconfig:"DAILYCART_ORDERS_PENDING_TTL" default:"24h"`
}

type RateLimitConfig struct {
	CouponApplyWindow time.Duration `envconfig:"DAILYCART_RATE_LIMIT_COUPON_WINDOW" default:"1m"`
	CouponApplyLimit  int64         `envconfig:"DAILYCART_RATE_LIMIT_COUPON_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DAILYCART_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"DAILYCART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationsTopic string `envconfig:"DAILYCART_PUBSUB_NOTIFICATIONS_TOPIC" default:"dc-order-notifications"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DAILYCART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DAILYCART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DAILYCART_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"DAILYCART_OUTBOX_RETENTION_DAYS" default:"30"`
}

// CronConfig paces the cron worker. LockTTL must outlive the slowest cycle.
type CronConfig struct {
	Interval      time.Duration `envconfig:"DAILYCART_CRON_INTERVAL" default:"15m"`
	LockTTL       time.Duration `envconfig:"DAILYCART_CRON_LOCK_TTL" default:"10m"`
	OrderTTLBatch int           `envconfig:"DAILYCART_CRON_ORDER_TTL_BATCH" default:"100"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
