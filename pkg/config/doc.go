// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	ENVLINK_HOST="0.0.0.0"
//	ENVLINK_PORT="8080"
//	ENVLINK_HEALTH_PORT="9090"
//	ENVLINK_READ_TIMEOUT="15s"
//	ENVLINK_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	ENVLINK_STORAGE_TYPE="postgres"  # filesystem, postgres
//	ENVLINK_FILESYSTEM_ROOT="/var/envlink/data"
//	ENVLINK_POSTGRES_URL="postgres://localhost/envlink"
//	ENVLINK_POSTGRES_REPLICA_URLS="postgres://replica1/envlink,postgres://replica2/envlink"
//	ENVLINK_POSTGRES_MAX_CONNS="20"
//	ENVLINK_S3_BUCKET="envlink-exports"
//	ENVLINK_S3_REGION="us-east-1"
//
// Cache settings:
//
//	ENVLINK_CACHE_ENABLED="true"
//	ENVLINK_REDIS_URL="localhost:6379"
//	ENVLINK_REDIS_POOL_SIZE="10"
//
// Drift checker settings:
//
//	ENVLINK_DRIFT_SCHEDULE="*/15 * * * *"
//	ENVLINK_DRIFT_CONCURRENCY="4"
//	ENVLINK_DRIFT_LOCK_TTL="10m"
//
// Observability settings:
//
//	ENVLINK_LOG_LEVEL="info"  # debug, info, warn, error
//	ENVLINK_METRICS_ENABLED="true"
//	ENVLINK_OTEL_ENABLED="true"
//	ENVLINK_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Storage: %s\n", cfg.Storage.Type)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
