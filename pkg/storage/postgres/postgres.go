package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/platinummonkey/envlink/pkg/api"
	"github.com/platinummonkey/envlink/pkg/storage"
)

var tracer = otel.Tracer("envlink/storage/postgres")

var (
	_ storage.StorageV2 = (*PostgresStorage)(nil)
	_ storage.StorageV2 = (*CachedStorage)(nil)
)

// Schema is the DDL for the PostgreSQL backend. env_vars rows keep the
// three value columns nullable; exactly one is non-NULL per row, which
// the API layer enforces before any write reaches storage.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS env_vars (
	id           BIGSERIAL PRIMARY KEY,
	project_id   BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	raw_value    TEXT,
	linked_to    TEXT,
	concat_parts TEXT,
	description  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (project_id, name)
);

CREATE TABLE IF NOT EXISTS env_exports (
	id              TEXT PRIMARY KEY,
	project_id      BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	export_path     TEXT NOT NULL,
	resolved_values JSONB NOT NULL,
	export_hash     TEXT NOT NULL,
	archive_key     TEXT NOT NULL DEFAULT '',
	exported_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	git_repo_path   TEXT NOT NULL DEFAULT '',
	git_branch      TEXT NOT NULL DEFAULT '',
	git_commit_hash TEXT NOT NULL DEFAULT '',
	git_remote_url  TEXT NOT NULL DEFAULT '',
	is_git_repo     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_env_vars_project ON env_vars(project_id);
CREATE INDEX IF NOT EXISTS idx_env_exports_project ON env_exports(project_id);
`

// PostgresStorage implements StorageV2 using PostgreSQL, with an optional
// S3 archive for export payloads and an optional Redis client used for
// pattern invalidation and health checks. Read-through caching lives in
// CachedStorage, not here.
type PostgresStorage struct {
	conns       *ConnectionManager
	s3Client    *S3Client
	redisClient *RedisClient
	config      storage.Config
	log         *logrus.Entry
}

// NewPostgresStorage creates a new PostgreSQL-backed storage
func NewPostgresStorage(config storage.Config) (*PostgresStorage, error) {
	conns, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL:  config.PostgresURL,
		ReplicaURLs: ParseReplicaURLs(config.PostgresReplicaURLs),
		MaxConns:    config.PostgresMaxConns,
		MinConns:    config.PostgresMinConns,
		Timeout:     config.PostgresTimeout,
		MaxLifetime: 1 * time.Hour,
		MaxIdleTime: 10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	var s3Client *S3Client
	if config.S3Bucket != "" {
		s3Client, err = NewS3Client(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
	}

	var redisClient *RedisClient
	if config.CacheEnabled && config.RedisURL != "" {
		redisClient, err = NewRedisClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
	}

	return &PostgresStorage{
		conns:       conns,
		s3Client:    s3Client,
		redisClient: redisClient,
		config:      config,
		log:         logrus.WithField("component", "postgres-storage"),
	}, nil
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	if _, err := s.conns.Primary().ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Backward-compatible methods that delegate to context-aware versions

func (s *PostgresStorage) CreateProject(project *api.Project) error {
	return s.CreateProjectContext(context.Background(), project)
}

func (s *PostgresStorage) GetProject(name string) (*api.Project, error) {
	return s.GetProjectContext(context.Background(), name)
}

func (s *PostgresStorage) ListProjects() ([]*api.Project, error) {
	return s.ListProjectsContext(context.Background())
}

func (s *PostgresStorage) UpdateProject(project *api.Project) error {
	return s.UpdateProjectContext(context.Background(), project)
}

func (s *PostgresStorage) DeleteProject(name string) error {
	return s.DeleteProjectContext(context.Background(), name)
}

func (s *PostgresStorage) CreateEnvVar(v *api.EnvVar) error {
	return s.CreateEnvVarContext(context.Background(), v)
}

func (s *PostgresStorage) GetEnvVar(project, name string) (*api.EnvVar, error) {
	return s.GetEnvVarContext(context.Background(), project, name)
}

func (s *PostgresStorage) ListEnvVars(project string) ([]*api.EnvVar, error) {
	return s.ListEnvVarsContext(context.Background(), project)
}

func (s *PostgresStorage) UpdateEnvVar(v *api.EnvVar) error {
	return s.UpdateEnvVarContext(context.Background(), v)
}

func (s *PostgresStorage) DeleteEnvVar(project, name string) error {
	return s.DeleteEnvVarContext(context.Background(), project, name)
}

func (s *PostgresStorage) ListAllEnvVars() ([]*api.EnvVar, error) {
	return s.ListAllEnvVarsContext(context.Background())
}

func (s *PostgresStorage) CreateExport(export *api.EnvExport) error {
	return s.CreateExportContext(context.Background(), export)
}

func (s *PostgresStorage) GetExport(id string) (*api.EnvExport, error) {
	return s.GetExportContext(context.Background(), id)
}

func (s *PostgresStorage) ListExports(project string) ([]*api.EnvExport, error) {
	return s.ListExportsContext(context.Background(), project)
}

func (s *PostgresStorage) DeleteExport(id string) error {
	return s.DeleteExportContext(context.Background(), id)
}

// Project operations

func (s *PostgresStorage) CreateProjectContext(ctx context.Context, project *api.Project) error {
	query := `
		INSERT INTO projects (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`

	err := s.conns.Primary().QueryRowContext(ctx, query,
		project.Name,
		project.Description,
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetProjectContext(ctx context.Context, name string) (*api.Project, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM projects
		WHERE name = $1
	`

	var project api.Project
	err := s.conns.Replica().QueryRowContext(ctx, query, name).Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %q: %w", name, api.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (s *PostgresStorage) ListProjectsContext(ctx context.Context) ([]*api.Project, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM projects
		ORDER BY name
	`

	rows, err := s.conns.Replica().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*api.Project
	for rows.Next() {
		var p api.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

func (s *PostgresStorage) UpdateProjectContext(ctx context.Context, project *api.Project) error {
	query := `
		UPDATE projects
		SET description = $2, updated_at = NOW()
		WHERE name = $1
		RETURNING id, updated_at
	`

	err := s.conns.Primary().QueryRowContext(ctx, query,
		project.Name,
		project.Description,
	).Scan(&project.ID, &project.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("project %q: %w", project.Name, api.ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteProjectContext(ctx context.Context, name string) error {
	// Variables and exports go with the project via ON DELETE CASCADE.
	result, err := s.conns.Primary().ExecContext(ctx, "DELETE FROM projects WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("project %q: %w", name, api.ErrNotFound)
	}
	return nil
}

// Variable operations

const envVarColumns = `
	v.id, v.project_id, p.name, v.name,
	v.raw_value, v.linked_to, v.concat_parts,
	v.description, v.created_at, v.updated_at
`

func scanEnvVar(row interface{ Scan(...interface{}) error }) (*api.EnvVar, error) {
	var v api.EnvVar
	err := row.Scan(
		&v.ID, &v.ProjectID, &v.Project, &v.Name,
		&v.RawValue, &v.LinkedTo, &v.ConcatParts,
		&v.Description, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PostgresStorage) projectID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.conns.Replica().QueryRowContext(ctx, "SELECT id FROM projects WHERE name = $1", name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("project %q: %w", name, api.ErrNotFound)
	} else if err != nil {
		return 0, fmt.Errorf("failed to look up project: %w", err)
	}
	return id, nil
}

func (s *PostgresStorage) CreateEnvVarContext(ctx context.Context, v *api.EnvVar) error {
	projectID, err := s.projectID(ctx, v.Project)
	if err != nil {
		return err
	}
	v.ProjectID = projectID

	query := `
		INSERT INTO env_vars (project_id, name, raw_value, linked_to, concat_parts, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err = s.conns.Primary().QueryRowContext(ctx, query,
		projectID,
		v.Name,
		v.RawValue,
		v.LinkedTo,
		v.ConcatParts,
		v.Description,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create variable: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetEnvVarContext(ctx context.Context, project, name string) (*api.EnvVar, error) {
	query := `
		SELECT ` + envVarColumns + `
		FROM env_vars v
		JOIN projects p ON v.project_id = p.id
		WHERE p.name = $1 AND v.name = $2
	`

	v, err := scanEnvVar(s.conns.Replica().QueryRowContext(ctx, query, project, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("variable %s:%s: %w", project, name, api.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get variable: %w", err)
	}
	return v, nil
}

func (s *PostgresStorage) ListEnvVarsContext(ctx context.Context, project string) ([]*api.EnvVar, error) {
	if _, err := s.projectID(ctx, project); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + envVarColumns + `
		FROM env_vars v
		JOIN projects p ON v.project_id = p.id
		WHERE p.name = $1
		ORDER BY v.name
	`
	return s.queryEnvVars(ctx, query, project)
}

func (s *PostgresStorage) ListAllEnvVarsContext(ctx context.Context) ([]*api.EnvVar, error) {
	query := `
		SELECT ` + envVarColumns + `
		FROM env_vars v
		JOIN projects p ON v.project_id = p.id
		ORDER BY p.name, v.name
	`
	return s.queryEnvVars(ctx, query)
}

func (s *PostgresStorage) queryEnvVars(ctx context.Context, query string, args ...interface{}) ([]*api.EnvVar, error) {
	rows, err := s.conns.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list variables: %w", err)
	}
	defer rows.Close()

	var envVars []*api.EnvVar
	for rows.Next() {
		v, err := scanEnvVar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variable: %w", err)
		}
		envVars = append(envVars, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variables: %w", err)
	}
	return envVars, nil
}

func (s *PostgresStorage) UpdateEnvVarContext(ctx context.Context, v *api.EnvVar) error {
	query := `
		UPDATE env_vars
		SET raw_value = $3, linked_to = $4, concat_parts = $5, description = $6, updated_at = NOW()
		FROM projects
		WHERE env_vars.project_id = projects.id AND projects.name = $1 AND env_vars.name = $2
		RETURNING env_vars.id, env_vars.updated_at
	`

	err := s.conns.Primary().QueryRowContext(ctx, query,
		v.Project,
		v.Name,
		v.RawValue,
		v.LinkedTo,
		v.ConcatParts,
		v.Description,
	).Scan(&v.ID, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("variable %s:%s: %w", v.Project, v.Name, api.ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("failed to update variable: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteEnvVarContext(ctx context.Context, project, name string) error {
	query := `
		DELETE FROM env_vars
		USING projects
		WHERE env_vars.project_id = projects.id AND projects.name = $1 AND env_vars.name = $2
	`

	result, err := s.conns.Primary().ExecContext(ctx, query, project, name)
	if err != nil {
		return fmt.Errorf("failed to delete variable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("variable %s:%s: %w", project, name, api.ErrNotFound)
	}
	return nil
}

// Export operations

func (s *PostgresStorage) CreateExportContext(ctx context.Context, export *api.EnvExport) error {
	projectID, err := s.projectID(ctx, export.Project)
	if err != nil {
		return err
	}
	export.ProjectID = projectID

	// Archive the payload before the row exists so a failed upload never
	// leaves a record pointing at a missing object.
	if s.s3Client != nil {
		key, err := s.s3Client.PutExportArchive(ctx, export)
		if err != nil {
			return fmt.Errorf("failed to archive export payload: %w", err)
		}
		export.ArchiveKey = key
	}

	values, err := json.Marshal(export.ResolvedValues)
	if err != nil {
		return fmt.Errorf("failed to marshal resolved values: %w", err)
	}

	query := `
		INSERT INTO env_exports (
			id, project_id, export_path, resolved_values, export_hash, archive_key,
			exported_at, git_repo_path, git_branch, git_commit_hash, git_remote_url, is_git_repo
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.conns.Primary().ExecContext(ctx, query,
		export.ID,
		projectID,
		export.ExportPath,
		values,
		export.ExportHash,
		export.ArchiveKey,
		export.ExportedAt,
		export.GitRepoPath,
		export.GitBranch,
		export.GitCommitHash,
		export.GitRemoteURL,
		export.IsGitRepo,
	)
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}
	return nil
}

const exportColumns = `
	e.id, e.project_id, p.name, e.export_path, e.resolved_values,
	e.export_hash, e.archive_key, e.exported_at,
	e.git_repo_path, e.git_branch, e.git_commit_hash, e.git_remote_url, e.is_git_repo
`

func scanExport(row interface{ Scan(...interface{}) error }) (*api.EnvExport, error) {
	var e api.EnvExport
	var values []byte
	err := row.Scan(
		&e.ID, &e.ProjectID, &e.Project, &e.ExportPath, &values,
		&e.ExportHash, &e.ArchiveKey, &e.ExportedAt,
		&e.GitRepoPath, &e.GitBranch, &e.GitCommitHash, &e.GitRemoteURL, &e.IsGitRepo,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(values, &e.ResolvedValues); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resolved values: %w", err)
	}
	return &e, nil
}

func (s *PostgresStorage) GetExportContext(ctx context.Context, id string) (*api.EnvExport, error) {
	query := `
		SELECT ` + exportColumns + `
		FROM env_exports e
		JOIN projects p ON e.project_id = p.id
		WHERE e.id = $1
	`

	export, err := scanExport(s.conns.Replica().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("export %q: %w", id, api.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	return export, nil
}

// ListExportsContext lists exports for one project, or every export when
// project is empty.
func (s *PostgresStorage) ListExportsContext(ctx context.Context, project string) ([]*api.EnvExport, error) {
	query := `
		SELECT ` + exportColumns + `
		FROM env_exports e
		JOIN projects p ON e.project_id = p.id
	`
	var args []interface{}
	if project != "" {
		if _, err := s.projectID(ctx, project); err != nil {
			return nil, err
		}
		query += " WHERE p.name = $1"
		args = append(args, project)
	}
	query += " ORDER BY e.exported_at DESC"

	rows, err := s.conns.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	var exports []*api.EnvExport
	for rows.Next() {
		export, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		exports = append(exports, export)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exports: %w", err)
	}
	return exports, nil
}

func (s *PostgresStorage) DeleteExportContext(ctx context.Context, id string) error {
	export, err := s.GetExportContext(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.conns.Primary().ExecContext(ctx, "DELETE FROM env_exports WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete export: %w", err)
	}

	// Best effort: the row is gone either way.
	if s.s3Client != nil && export.ArchiveKey != "" {
		if err := s.s3Client.DeleteObject(ctx, export.ArchiveKey); err != nil {
			s.log.WithError(err).Warnf("failed to delete export archive %s", export.ArchiveKey)
		}
	}
	return nil
}

// InvalidateCache removes Redis keys matching the given patterns.
func (s *PostgresStorage) InvalidateCache(ctx context.Context, patterns ...string) error {
	if s.redisClient == nil {
		return nil
	}
	return s.redisClient.InvalidatePatterns(ctx, patterns...)
}

// HealthCheck pings PostgreSQL, S3, and Redis.
func (s *PostgresStorage) HealthCheck(ctx context.Context) error {
	if err := s.conns.HealthCheck(ctx); err != nil {
		return fmt.Errorf("postgres unhealthy: %w", err)
	}
	if s.s3Client != nil {
		if err := s.s3Client.HealthCheck(ctx); err != nil {
			return fmt.Errorf("s3 unhealthy: %w", err)
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}
	return nil
}

// GetDB returns the primary database connection for health checks
func (s *PostgresStorage) GetDB() *sql.DB {
	return s.conns.Primary()
}

// GetRedis returns the Redis client (may be nil if not configured)
func (s *PostgresStorage) GetRedis() *RedisClient {
	return s.redisClient
}

// Connections returns the underlying connection manager
func (s *PostgresStorage) Connections() *ConnectionManager {
	return s.conns
}

// Close closes all connections
func (s *PostgresStorage) Close() error {
	if s.conns != nil {
		s.conns.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	return nil
}
