package postgres

import (
	"context"
	"errors"

	"github.com/platinummonkey/envlink/pkg/api"
	"github.com/platinummonkey/envlink/pkg/storage"
)

// CachedStorage is a read-through Redis cache over another StorageV2.
// Reads populate the cache on miss with per-entity TTLs from
// storage.Config.CacheTTL; writes go straight to the backend and
// invalidate every key the written entity could be cached under. Cache
// failures are never fatal: a broken Redis degrades to backend reads.
type CachedStorage struct {
	backend storage.StorageV2
	redis   *RedisClient
}

// NewCachedStorage wraps a backend with the Redis cache layer.
func NewCachedStorage(backend storage.StorageV2, redis *RedisClient) *CachedStorage {
	return &CachedStorage{backend: backend, redis: redis}
}

// Backend returns the wrapped storage.
func (c *CachedStorage) Backend() storage.StorageV2 {
	return c.backend
}

// Non-context methods delegate to the context-aware versions.

func (c *CachedStorage) CreateProject(project *api.Project) error {
	return c.CreateProjectContext(context.Background(), project)
}

func (c *CachedStorage) GetProject(name string) (*api.Project, error) {
	return c.GetProjectContext(context.Background(), name)
}

func (c *CachedStorage) ListProjects() ([]*api.Project, error) {
	return c.ListProjectsContext(context.Background())
}

func (c *CachedStorage) ListAllEnvVars() ([]*api.EnvVar, error) {
	return c.ListAllEnvVarsContext(context.Background())
}

// Project operations

func (c *CachedStorage) CreateProjectContext(ctx context.Context, project *api.Project) error {
	if err := c.backend.CreateProjectContext(ctx, project); err != nil {
		return err
	}
	c.redis.Invalidate(ctx, projectKey(project.Name), projectListKey())
	return nil
}

func (c *CachedStorage) GetProjectContext(ctx context.Context, name string) (*api.Project, error) {
	var cached api.Project
	if ok, _ := c.redis.GetJSON(ctx, projectKey(name), &cached); ok {
		return &cached, nil
	}

	project, err := c.backend.GetProjectContext(ctx, name)
	if err != nil {
		return nil, err
	}
	c.redis.SetJSON(ctx, projectKey(name), project, "project")
	return project, nil
}

func (c *CachedStorage) ListProjectsContext(ctx context.Context) ([]*api.Project, error) {
	var cached []*api.Project
	if ok, _ := c.redis.GetJSON(ctx, projectListKey(), &cached); ok {
		return cached, nil
	}

	projects, err := c.backend.ListProjectsContext(ctx)
	if err != nil {
		return nil, err
	}
	c.redis.SetJSON(ctx, projectListKey(), projects, "project_list")
	return projects, nil
}

func (c *CachedStorage) UpdateProject(project *api.Project) error {
	if err := c.backend.UpdateProject(project); err != nil {
		return err
	}
	c.redis.Invalidate(context.Background(), projectKey(project.Name), projectListKey())
	return nil
}

func (c *CachedStorage) DeleteProject(name string) error {
	if err := c.backend.DeleteProject(name); err != nil {
		return err
	}
	// Deleting a project takes its variables and exports with it.
	ctx := context.Background()
	c.redis.Invalidate(ctx,
		projectKey(name), projectListKey(),
		envVarListKey(name), allEnvVarsKey(),
		exportListKey(name), exportListKey(""),
	)
	c.redis.InvalidatePatterns(ctx, envVarKey(name, "*"))
	return nil
}

// Variable operations

func (c *CachedStorage) invalidateEnvVar(ctx context.Context, project, name string) {
	c.redis.Invalidate(ctx,
		envVarKey(project, name),
		envVarListKey(project),
		allEnvVarsKey(),
	)
}

func (c *CachedStorage) CreateEnvVar(v *api.EnvVar) error {
	if err := c.backend.CreateEnvVar(v); err != nil {
		return err
	}
	c.invalidateEnvVar(context.Background(), v.Project, v.Name)
	return nil
}

func (c *CachedStorage) GetEnvVar(project, name string) (*api.EnvVar, error) {
	ctx := context.Background()
	var cached api.EnvVar
	if ok, _ := c.redis.GetJSON(ctx, envVarKey(project, name), &cached); ok {
		return &cached, nil
	}

	v, err := c.backend.GetEnvVar(project, name)
	if err != nil {
		return nil, err
	}
	c.redis.SetJSON(ctx, envVarKey(project, name), v, "envvar")
	return v, nil
}

func (c *CachedStorage) ListEnvVars(project string) ([]*api.EnvVar, error) {
	ctx := context.Background()
	var cached []*api.EnvVar
	if ok, _ := c.redis.GetJSON(ctx, envVarListKey(project), &cached); ok {
		return cached, nil
	}

	envVars, err := c.backend.ListEnvVars(project)
	if err != nil {
		return nil, err
	}
	c.redis.SetJSON(ctx, envVarListKey(project), envVars, "envvar_list")
	return envVars, nil
}

func (c *CachedStorage) UpdateEnvVar(v *api.EnvVar) error {
	if err := c.backend.UpdateEnvVar(v); err != nil {
		return err
	}
	c.invalidateEnvVar(context.Background(), v.Project, v.Name)
	return nil
}

func (c *CachedStorage) DeleteEnvVar(project, name string) error {
	if err := c.backend.DeleteEnvVar(project, name); err != nil {
		return err
	}
	c.invalidateEnvVar(context.Background(), project, name)
	return nil
}

func (c *CachedStorage) ListAllEnvVarsContext(ctx context.Context) ([]*api.EnvVar, error) {
	var cached []*api.EnvVar
	if ok, _ := c.redis.GetJSON(ctx, allEnvVarsKey(), &cached); ok {
		return cached, nil
	}

	envVars, err := c.backend.ListAllEnvVarsContext(ctx)
	if err != nil {
		return nil, err
	}
	c.redis.SetJSON(ctx, allEnvVarsKey(), envVars, "snapshot")
	return envVars, nil
}

// Export operations

func (c *CachedStorage) invalidateExport(ctx context.Context, project, id string) {
	c.redis.Invalidate(ctx,
		exportKey(id),
		exportListKey(project),
		exportListKey(""),
	)
}

func (c *CachedStorage) CreateExport(export *api.EnvExport) error {
	if err := c.backend.CreateExport(export); err != nil {
		return err
	}
	c.invalidateExport(context.Background(), export.Project, export.ID)
	return nil
}

func (c *CachedStorage) GetExport(id string) (*api.EnvExport, error) {
	ctx := context.Background()
	var cached api.EnvExport
	if ok, _ := c.redis.GetJSON(ctx, exportKey(id), &cached); ok {
		return &cached, nil
	}

	export, err := c.backend.GetExport(id)
	if err != nil {
		return nil, err
	}
	c.redis.SetJSON(ctx, exportKey(id), export, "export")
	return export, nil
}

func (c *CachedStorage) ListExports(project string) ([]*api.EnvExport, error) {
	ctx := context.Background()
	var cached []*api.EnvExport
	if ok, _ := c.redis.GetJSON(ctx, exportListKey(project), &cached); ok {
		return cached, nil
	}

	exports, err := c.backend.ListExports(project)
	if err != nil {
		return nil, err
	}
	c.redis.SetJSON(ctx, exportListKey(project), exports, "export_list")
	return exports, nil
}

func (c *CachedStorage) DeleteExport(id string) error {
	// Need the project for list invalidation before the row disappears.
	export, err := c.backend.GetExport(id)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return err
	}

	if err := c.backend.DeleteExport(id); err != nil {
		return err
	}
	project := ""
	if export != nil {
		project = export.Project
	}
	c.invalidateExport(context.Background(), project, id)
	return nil
}

// InvalidateCache removes keys matching the given patterns.
func (c *CachedStorage) InvalidateCache(ctx context.Context, patterns ...string) error {
	return c.redis.InvalidatePatterns(ctx, patterns...)
}

// HealthCheck checks the backend and the cache.
func (c *CachedStorage) HealthCheck(ctx context.Context) error {
	if err := c.backend.HealthCheck(ctx); err != nil {
		return err
	}
	return c.redis.Ping(ctx)
}
