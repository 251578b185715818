package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "STOREFRONT_APP_ENV"
	EnvPort   = "STOREFRONT_APP_PORT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvTenantCacheTTL = "STOREFRONT_TENANT_CACHE_TTL"

	EnvShippingDomestic      = "STOREFRONT_SHIPPING_DOMESTIC"
	EnvShippingInternational = "STOREFRONT_SHIPPING_INTERNATIONAL"
	EnvVATRatePercent        = "STOREFRONT_VAT_RATE_PERCENT"
	EnvHomeCountry           = "STOREFRONT_HOME_COUNTRY"

	EnvPubSubOrdersTopic  = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvPubSubTenantsTopic = "STOREFRONT_PUBSUB_TENANTS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
