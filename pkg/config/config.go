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
	FeatureFlags FeatureFlagsConfig
	Billing      BillingConfig
	Debt         DebtConfig
	Cache        CacheConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.App.IsProd() && cfg.FeatureFlags.UseSQLite {
		return nil, fmt.Errorf("%s is not allowed in prod", EnvUseSQLite)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHOPLEDGER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"SHOPLEDGER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"SHOPLEDGER_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list. Empty means localhost only.
	CORSOrigins []string `envconfig:"SHOPLEDGER_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPLEDGER_DB_DSN"`
	Driver string `envconfig:"SHOPLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"SHOPLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// StatementTimeout bounds every store round trip so an unreachable
	// database surfaces as UNAVAILABLE instead of hanging the request.
	StatementTimeout time.Duration `envconfig:"SHOPLEDGER_DB_STATEMENT_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPLEDGER_REDIS_URL"`
	Address      string        `envconfig:"SHOPLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPLEDGER_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"SHOPLEDGER_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"SHOPLEDGER_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"SHOPLEDGER_SQLITE_PATH" default:"shopledger.db"`
	AutoMigrate bool   `envconfig:"SHOPLEDGER_AUTO_MIGRATE" default:"false"`
}

// BillingConfig tunes the metrics windows and the local trial.
type BillingConfig struct {
	TrialDays    int           `envconfig:"SHOPLEDGER_BILLING_TRIAL_DAYS" default:"14"`
	GraceDays    int           `envconfig:"SHOPLEDGER_BILLING_GRACE_DAYS" default:"0"`
	ChurnWindow  time.Duration `envconfig:"SHOPLEDGER_BILLING_CHURN_WINDOW" default:"720h"`
	GrowthWindow time.Duration `envconfig:"SHOPLEDGER_BILLING_GROWTH_WINDOW" default:"720h"`
	DaysPerMonth int           `envconfig:"SHOPLEDGER_BILLING_DAYS_PER_MONTH" default:"30"`
}

func (b BillingConfig) validate() error {
	if b.TrialDays < 0 || b.GraceDays < 0 {
		return fmt.Errorf("trial and grace days must not be negative")
	}
	if b.ChurnWindow <= 0 || b.GrowthWindow <= 0 {
		return fmt.Errorf("billing windows must be positive")
	}
	if b.DaysPerMonth <= 0 {
		return fmt.Errorf("%s must be positive", EnvBillingDaysPerMonth)
	}
	return nil
}

type DebtConfig struct {
	DefaultDueDays int `envconfig:"SHOPLEDGER_DEBT_DEFAULT_DUE_DAYS" default:"30"`
}

type CacheConfig struct {
	AnalyticsTTL        time.Duration `envconfig:"SHOPLEDGER_CACHE_ANALYTICS_TTL" default:"5m"`
	AnalyticsMaxEntries int           `envconfig:"SHOPLEDGER_CACHE_ANALYTICS_MAX_ENTRIES" default:"128"`
	// SharedTTL is how long the redis tier keeps a snapshot. Zero disables it.
	SharedTTL time.Duration `envconfig:"SHOPLEDGER_CACHE_SHARED_TTL" default:"15m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SHOPLEDGER_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"SHOPLEDGER_CRON_LOCK_TTL" default:"25h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
