package config

const (
	EnvPrefix = "TEEVO"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv        = "TEEVO_APP_ENV"
	EnvPort          = "TEEVO_APP_PORT"
	EnvDBDSN         = "TEEVO_DB_DSN"
	EnvDBHost        = "TEEVO_DB_HOST"
	EnvDBUser        = "TEEVO_DB_USER"
	EnvDBName        = "TEEVO_DB_NAME"
	EnvRedisURL      = "TEEVO_REDIS_URL"
	EnvJWTSecret     = "TEEVO_JWT_SECRET"
	EnvJWTIssuer     = "TEEVO_JWT_ISSUER"
	EnvJWTExpMins    = "TEEVO_JWT_EXPIRATION_MINUTES"
	EnvShippoAllow   = "TEEVO_SHIPPO_ALLOWED_SERVICES"
	EnvShippoTimeout = "TEEVO_SHIPPO_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
