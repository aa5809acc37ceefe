package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/envlink/pkg/api"
)

// StorageV2 extends the base Storage interface with modern features
type StorageV2 interface {
	api.Storage // Embed existing interface for backward compatibility

	// Context-aware operations
	CreateProjectContext(ctx context.Context, project *api.Project) error
	GetProjectContext(ctx context.Context, name string) (*api.Project, error)
	ListProjectsContext(ctx context.Context) ([]*api.Project, error)
	ListAllEnvVarsContext(ctx context.Context) ([]*api.EnvVar, error)

	// Cache operations
	InvalidateCache(ctx context.Context, patterns ...string) error

	// Health checks
	HealthCheck(ctx context.Context) error
}

// Config for storage backend
type Config struct {
	Type string // "filesystem", "postgres"

	// Filesystem config
	FilesystemRoot string

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string // comma-separated read replica URLs
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// S3 config (export payload archive)
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3Prefix         string
	S3AccessKey      string
	S3SecretKey      string
	S3ForcePathStyle bool

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache config
	CacheEnabled bool
	CacheTTL     map[string]time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "filesystem",
		FilesystemRoot:   "/tmp/envlink",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		CacheTTL: map[string]time.Duration{
			"project":      1 * time.Hour,
			"project_list": 5 * time.Minute,
			"envvar":       30 * time.Minute,
			"envvar_list":  5 * time.Minute,
			"snapshot":     1 * time.Minute,
			"export":       1 * time.Hour,
			"export_list":  5 * time.Minute,
		},
	}
}
