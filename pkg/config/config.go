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
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Recompute    RecomputeConfig
	Backfill     BackfillConfig
	Metrics      MetricsConfig
	API          APIConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LODGETIX_APP_ENV" required:"true"`
	Port         string `envconfig:"LODGETIX_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LODGETIX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LODGETIX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LODGETIX_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LODGETIX_DB_DSN"`
	Driver string `envconfig:"LODGETIX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LODGETIX_DB_HOST"`
	LegacyPort     int    `envconfig:"LODGETIX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LODGETIX_DB_USER"`
	LegacyPassword string `envconfig:"LODGETIX_DB_PASSWORD"`
	LegacyName     string `envconfig:"LODGETIX_DB_NAME"`
	LegacySSLMode  string `envconfig:"LODGETIX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LODGETIX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LODGETIX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LODGETIX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LODGETIX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"LODGETIX_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LODGETIX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LODGETIX_REDIS_ADDR"`
	Password     string        `envconfig:"LODGETIX_REDIS_PASSWORD"`
	DB           int           `envconfig:"LODGETIX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LODGETIX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LODGETIX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LODGETIX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LODGETIX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LODGETIX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LODGETIX_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LODGETIX_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"LODGETIX_EVENTING_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"LODGETIX_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"LODGETIX_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	RegistrationChangesTopic        string `envconfig:"LODGETIX_PUBSUB_REGISTRATION_CHANGES_TOPIC" default:"registration-changes"`
	RegistrationChangesSubscription string `envconfig:"LODGETIX_PUBSUB_REGISTRATION_CHANGES_SUBSCRIPTION"`
	MaxOutstandingMessages          int    `envconfig:"LODGETIX_PUBSUB_MAX_OUTSTANDING_MESSAGES" default:"16"`
	NumGoroutines                   int    `envconfig:"LODGETIX_PUBSUB_NUM_GOROUTINES" default:"2"`
}

// RecomputeConfig tunes the inventory recompute engine.
type RecomputeConfig struct {
	Interval           time.Duration `envconfig:"LODGETIX_RECOMPUTE_INTERVAL" default:"15m"`
	ScanBatchSize      int           `envconfig:"LODGETIX_RECOMPUTE_SCAN_BATCH_SIZE" default:"500"`
	Workers            int           `envconfig:"LODGETIX_RECOMPUTE_WORKERS" default:"4"`
	WriteAttempts      int           `envconfig:"LODGETIX_RECOMPUTE_WRITE_ATTEMPTS" default:"3"`
	ReadAttempts       int           `envconfig:"LODGETIX_RECOMPUTE_READ_ATTEMPTS" default:"3"`
	RetryBaseDelay     time.Duration `envconfig:"LODGETIX_RECOMPUTE_RETRY_BASE_DELAY" default:"200ms"`
	RetryMaxDelay      time.Duration `envconfig:"LODGETIX_RECOMPUTE_RETRY_MAX_DELAY" default:"5s"`
	LockTTL            time.Duration `envconfig:"LODGETIX_RECOMPUTE_LOCK_TTL" default:"1h"`
	JobTimeout         time.Duration `envconfig:"LODGETIX_RECOMPUTE_JOB_TIMEOUT" default:"45m"`
	AuditEnabled       bool          `envconfig:"LODGETIX_RECOMPUTE_AUDIT_ENABLED" default:"true"`
	RevenueTolerance   string        `envconfig:"LODGETIX_RECOMPUTE_REVENUE_TOLERANCE" default:"0.50"`
	AnomalySampleLimit int           `envconfig:"LODGETIX_RECOMPUTE_ANOMALY_SAMPLE_LIMIT" default:"10"`
}

// Tolerance parses the per-registration revenue tolerance, falling back to zero.
func (r RecomputeConfig) Tolerance() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(r.RevenueTolerance))
	if err != nil || value.IsNegative() {
		return decimal.Zero
	}
	return value
}

type BackfillConfig struct {
	BatchSize       int `envconfig:"LODGETIX_BACKFILL_BATCH_SIZE" default:"200"`
	ConflictRetries int `envconfig:"LODGETIX_BACKFILL_CONFLICT_RETRIES" default:"3"`
}

type APIConfig struct {
	CORSOrigins    []string      `envconfig:"LODGETIX_API_CORS_ORIGINS" default:"http://localhost:3000"`
	RequestTimeout time.Duration `envconfig:"LODGETIX_API_REQUEST_TIMEOUT" default:"2m"`
}

type MetricsConfig struct {
	Addr string `envconfig:"LODGETIX_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
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
