package config

const (
	EnvPrefix = "LODGETIX"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "LODGETIX_APP_ENV"
	EnvPort      = "LODGETIX_APP_PORT"
	EnvUseSQLite = "LODGETIX_USE_SQLITE"

	EnvDBDSN  = "LODGETIX_DB_DSN"
	EnvDBHost = "LODGETIX_DB_HOST"
	EnvDBUser = "LODGETIX_DB_USER"
	EnvDBName = "LODGETIX_DB_NAME"

	EnvRedisURL = "LODGETIX_REDIS_URL"

	EnvRecomputeInterval  = "LODGETIX_RECOMPUTE_INTERVAL"
	EnvRecomputeWorkers   = "LODGETIX_RECOMPUTE_WORKERS"
	EnvRevenueTolerance   = "LODGETIX_RECOMPUTE_REVENUE_TOLERANCE"
	EnvPubSubChangesSub   = "LODGETIX_PUBSUB_REGISTRATION_CHANGES_SUBSCRIPTION"
	EnvPubSubChangesTopic = "LODGETIX_PUBSUB_REGISTRATION_CHANGES_TOPIC"

	defaultSQLiteDSN = "file:lodgetix.db?cache=shared"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
