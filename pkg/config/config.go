package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Stripe     StripeConfig
	Shippo     ShippoConfig
	Sendgrid   SendgridConfig
	Fulfilment FulfilmentConfig
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
	Env          string `envconfig:"TEEVO_APP_ENV" required:"true"`
	Port         string `envconfig:"TEEVO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TEEVO_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TEEVO_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TEEVO_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"TEEVO_AUTO_MIGRATE" default:"false"`

	CORSOrigins []string `envconfig:"TEEVO_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TEEVO_DB_DSN"`
	Driver string `envconfig:"TEEVO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TEEVO_DB_HOST"`
	LegacyPort     int    `envconfig:"TEEVO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TEEVO_DB_USER"`
	LegacyPassword string `envconfig:"TEEVO_DB_PASSWORD"`
	LegacyName     string `envconfig:"TEEVO_DB_NAME"`
	LegacySSLMode  string `envconfig:"TEEVO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TEEVO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TEEVO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TEEVO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TEEVO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TEEVO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TEEVO_REDIS_ADDR"`
	Password     string        `envconfig:"TEEVO_REDIS_PASSWORD"`
	DB           int           `envconfig:"TEEVO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TEEVO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TEEVO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TEEVO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TEEVO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TEEVO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TEEVO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TEEVO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TEEVO_JWT_EXPIRATION_MINUTES" required:"true"`
}

type StripeConfig struct {
	APIKey  string        `envconfig:"TEEVO_STRIPE_API_KEY"`
	Secret  string        `envconfig:"TEEVO_STRIPE_SECRET"`
	Env     string        `envconfig:"TEEVO_STRIPE_ENV" default:"test"`
	Timeout time.Duration `envconfig:"TEEVO_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// ShippoConfig.AllowedServices is ordered by preference; rates outside it are never purchased.
type ShippoConfig struct {
	APIToken        string        `envconfig:"TEEVO_SHIPPO_API_TOKEN"`
	BaseURL         string        `envconfig:"TEEVO_SHIPPO_BASE_URL" default:"https://api.goshippo.com"`
	Timeout         time.Duration `envconfig:"TEEVO_SHIPPO_TIMEOUT" default:"20s"`
	WebhookToken    string        `envconfig:"TEEVO_SHIPPO_WEBHOOK_TOKEN"`
	LabelFileType   string        `envconfig:"TEEVO_SHIPPO_LABEL_FILE_TYPE" default:"PDF_A4"`
	AllowedServices []string      `envconfig:"TEEVO_SHIPPO_ALLOWED_SERVICES" default:"evri_standard,royal_mail_tracked_48"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"TEEVO_SENDGRID_API_KEY"`
	Host        string `envconfig:"TEEVO_SENDGRID_HOST" default:"https://api.sendgrid.com"`
	DefaultFrom string `envconfig:"TEEVO_SENDGRID_FROM_EMAIL" default:"orders@teevo.co.uk"`
	FromName    string `envconfig:"TEEVO_SENDGRID_FROM_NAME" default:"Teevo"`
	DryRun      bool   `envconfig:"TEEVO_SENDGRID_DRY_RUN" default:"false"`
}

type FulfilmentConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"TEEVO_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	TransitionAttempts    int           `envconfig:"TEEVO_TRANSITION_ATTEMPTS" default:"3"`
	AdminNotifyEmail      string        `envconfig:"TEEVO_ADMIN_NOTIFY_EMAIL"`
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
