package config

const (
	EnvPrefix = "DAILYCART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "DAILYCART_APP_ENV"
	EnvPort     = "DAILYCART_APP_PORT"
	EnvLogLevel = "DAILYCART_LOG_LEVEL"

	EnvDBDSN  = "DAILYCART_DB_DSN"
	EnvDBHost = "DAILYCART_DB_HOST"
	EnvDBPort = "DAILYCART_DB_PORT"
	EnvDBUser = "DAILYCART_DB_USER"
	EnvDBPass = "DAILYCART_DB_PASSWORD"
	EnvDBName = "DAILYCART_DB_NAME"

	EnvRedisURL  = "DAILYCART_REDIS_URL"
	EnvRedisAddr = "DAILYCART_REDIS_ADDR"

	EnvJWTSecret = "DAILYCART_JWT_SECRET"
	EnvJWTIssuer = "DAILYCART_JWT_ISSUER"

	EnvPricingMinOrder     = "DAILYCART_PRICING_MIN_ORDER_AMOUNT"
	EnvPricingFreeDelivery = "DAILYCART_PRICING_FREE_DELIVERY_THRESHOLD"
	EnvPricingDeliveryFee  = "DAILYCART_PRICING_DELIVERY_FEE"

	EnvOrdersLeadTime   = "DAILYCART_ORDERS_DELIVERY_LEAD_TIME"
	EnvOrdersPendingTTL = "DAILYCART_ORDERS_PENDING_TTL"

	EnvGCPProjectID       = "DAILYCART_GCP_PROJECT_ID"
	EnvPubSubNotifyTopic  = "DAILYCART_PUBSUB_NOTIFICATIONS_TOPIC"
	EnvOutboxRetentionDay = "DAILYCART_OUTBOX_RETENTION_DAYS"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
