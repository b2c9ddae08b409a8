package config

// EnvPrefix is passed to envconfig; every field carries an explicit name so
// the prefix only matters for fields added without one.
const EnvPrefix = "SHOPLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv              = "SHOPLEDGER_APP_ENV"
	EnvPort                = "SHOPLEDGER_APP_PORT"
	EnvDBDSN               = "SHOPLEDGER_DB_DSN"
	EnvDBHost              = "SHOPLEDGER_DB_HOST"
	EnvDBPort              = "SHOPLEDGER_DB_PORT"
	EnvDBUser              = "SHOPLEDGER_DB_USER"
	EnvDBPassword          = "SHOPLEDGER_DB_PASSWORD"
	EnvDBName              = "SHOPLEDGER_DB_NAME"
	EnvUseSQLite           = "SHOPLEDGER_USE_SQLITE"
	EnvRedisURL            = "SHOPLEDGER_REDIS_URL"
	EnvBillingTrialDays    = "SHOPLEDGER_BILLING_TRIAL_DAYS"
	EnvBillingDaysPerMonth = "SHOPLEDGER_BILLING_DAYS_PER_MONTH"
	EnvCacheAnalyticsTTL   = "SHOPLEDGER_CACHE_ANALYTICS_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
