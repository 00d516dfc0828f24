package config

const (
	// EnvPrefix namespaces every SUPERMART_* environment variable.
	EnvPrefix = "supermart"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SUPERMART_DB_DSN"
	EnvDBHost = "SUPERMART_DB_HOST"
	EnvDBUser = "SUPERMART_DB_USER"
	EnvDBName = "SUPERMART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
