// Package config loads the somcheck configuration from environment variables.
//
// Every setting has a default; LoadConfig validates the result. Command line
// flags override single values afterwards.
//
// Check settings:
//
//	SOMCHECK_SCHEMA="schema.yaml"
//	SOMCHECK_PROJECT="Neubau"
//	SOMCHECK_IDENT_PSET="Allgemeine Eigenschaften"
//	SOMCHECK_IDENT_ATTRIBUTE="bauteilKlassifikation"
//	SOMCHECK_MAX_IMPORTS="3"
//	SOMCHECK_EXCLUDE="<object id>,<attribute id>"
//
// Issue database and export:
//
//	SOMCHECK_DB_DRIVER="sqlite3"        # sqlite3 or postgres
//	SOMCHECK_DB_PATH=""                 # empty: fresh temporary file
//	SOMCHECK_DB_DSN="postgres://localhost/somcheck"
//	SOMCHECK_EXPORT_PATH="s3://reports/issues.db"
//	SOMCHECK_S3_REGION="eu-central-1"
//	SOMCHECK_S3_ENDPOINT="http://minio:9000"
//
// Redis (progress publishing and the issue count cache):
//
//	SOMCHECK_REDIS_URL="redis://localhost:6379/0"
//	SOMCHECK_REDIS_CHANNEL="somcheck:progress"
//	SOMCHECK_REDIS_COUNT_TTL="5m"
//
// Server and observability:
//
//	SOMCHECK_HOST="127.0.0.1"
//	SOMCHECK_PORT="8080"
//	SOMCHECK_LOG_LEVEL="info"           # debug, info, warn, error
//	SOMCHECK_METRICS_ENABLED="true"
//	SOMCHECK_OTEL_ENABLED="false"
//	SOMCHECK_OTEL_ENDPOINT="localhost:4317"
package config
