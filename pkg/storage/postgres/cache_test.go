package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/envlink/pkg/api"
	"github.com/platinummonkey/envlink/pkg/storage"
)

// stubStorage is an in-memory StorageV2 that counts backend reads so
// tests can tell cache hits from misses.
type stubStorage struct {
	projects map[string]*api.Project
	envVars  map[string]*api.EnvVar
	exports  map[string]*api.EnvExport

	getProjectCalls  int
	listProjectCalls int
	getEnvVarCalls   int
	listAllCalls     int
	getExportCalls   int
}

func newStubStorage() *stubStorage {
	return &stubStorage{
		projects: make(map[string]*api.Project),
		envVars:  make(map[string]*api.EnvVar),
		exports:  make(map[string]*api.EnvExport),
	}
}

func varMapKey(project, name string) string { return project + ":" + name }

func (s *stubStorage) CreateProject(p *api.Project) error {
	s.projects[p.Name] = p
	return nil
}

func (s *stubStorage) GetProject(name string) (*api.Project, error) {
	s.getProjectCalls++
	p, ok := s.projects[name]
	if !ok {
		return nil, fmt.Errorf("project %q: %w", name, api.ErrNotFound)
	}
	return p, nil
}

func (s *stubStorage) ListProjects() ([]*api.Project, error) {
	s.listProjectCalls++
	var out []*api.Project
	for _, p := range s.projects {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubStorage) UpdateProject(p *api.Project) error {
	if _, ok := s.projects[p.Name]; !ok {
		return fmt.Errorf("project %q: %w", p.Name, api.ErrNotFound)
	}
	s.projects[p.Name] = p
	return nil
}

func (s *stubStorage) DeleteProject(name string) error {
	delete(s.projects, name)
	return nil
}

func (s *stubStorage) CreateEnvVar(v *api.EnvVar) error {
	s.envVars[varMapKey(v.Project, v.Name)] = v
	return nil
}

func (s *stubStorage) GetEnvVar(project, name string) (*api.EnvVar, error) {
	s.getEnvVarCalls++
	v, ok := s.envVars[varMapKey(project, name)]
	if !ok {
		return nil, fmt.Errorf("variable %s:%s: %w", project, name, api.ErrNotFound)
	}
	return v, nil
}

func (s *stubStorage) ListEnvVars(project string) ([]*api.EnvVar, error) {
	var out []*api.EnvVar
	for _, v := range s.envVars {
		if v.Project == project {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *stubStorage) UpdateEnvVar(v *api.EnvVar) error {
	s.envVars[varMapKey(v.Project, v.Name)] = v
	return nil
}

func (s *stubStorage) DeleteEnvVar(project, name string) error {
	delete(s.envVars, varMapKey(project, name))
	return nil
}

func (s *stubStorage) ListAllEnvVars() ([]*api.EnvVar, error) {
	s.listAllCalls++
	var out []*api.EnvVar
	for _, v := range s.envVars {
		out = append(out, v)
	}
	return out, nil
}

func (s *stubStorage) CreateExport(e *api.EnvExport) error {
	s.exports[e.ID] = e
	return nil
}

func (s *stubStorage) GetExport(id string) (*api.EnvExport, error) {
	s.getExportCalls++
	e, ok := s.exports[id]
	if !ok {
		return nil, fmt.Errorf("export %q: %w", id, api.ErrNotFound)
	}
	return e, nil
}

func (s *stubStorage) ListExports(project string) ([]*api.EnvExport, error) {
	var out []*api.EnvExport
	for _, e := range s.exports {
		if project == "" || e.Project == project {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubStorage) DeleteExport(id string) error {
	delete(s.exports, id)
	return nil
}

func (s *stubStorage) CreateProjectContext(_ context.Context, p *api.Project) error {
	return s.CreateProject(p)
}

func (s *stubStorage) GetProjectContext(_ context.Context, name string) (*api.Project, error) {
	return s.GetProject(name)
}

func (s *stubStorage) ListProjectsContext(_ context.Context) ([]*api.Project, error) {
	return s.ListProjects()
}

func (s *stubStorage) ListAllEnvVarsContext(_ context.Context) ([]*api.EnvVar, error) {
	return s.ListAllEnvVars()
}

func (s *stubStorage) InvalidateCache(context.Context, ...string) error { return nil }

func (s *stubStorage) HealthCheck(context.Context) error { return nil }

var _ storage.StorageV2 = (*stubStorage)(nil)

func setupCachedStorage(t *testing.T) (*CachedStorage, *stubStorage, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	redisClient, err := NewRedisClient(storage.Config{
		RedisURL: "redis://" + mr.Addr(),
		CacheTTL: storage.DefaultConfig().CacheTTL,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		redisClient.Close()
		mr.Close()
	})

	backend := newStubStorage()
	return NewCachedStorage(backend, redisClient), backend, mr
}

func TestCachedStorage_GetProjectReadThrough(t *testing.T) {
	cached, backend, _ := setupCachedStorage(t)

	require.NoError(t, cached.CreateProject(&api.Project{ID: 1, Name: "webapp"}))

	p, err := cached.GetProject("webapp")
	require.NoError(t, err)
	assert.Equal(t, "webapp", p.Name)

	// Second read comes from the cache.
	_, err = cached.GetProject("webapp")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.getProjectCalls)
}

func TestCachedStorage_UpdateInvalidates(t *testing.T) {
	cached, backend, _ := setupCachedStorage(t)

	require.NoError(t, cached.CreateProject(&api.Project{ID: 1, Name: "webapp", Description: "old"}))
	_, err := cached.GetProject("webapp")
	require.NoError(t, err)

	require.NoError(t, cached.UpdateProject(&api.Project{ID: 1, Name: "webapp", Description: "new"}))

	p, err := cached.GetProject("webapp")
	require.NoError(t, err)
	assert.Equal(t, "new", p.Description)
	assert.Equal(t, 2, backend.getProjectCalls)
}

func TestCachedStorage_ListProjectsCached(t *testing.T) {
	cached, backend, _ := setupCachedStorage(t)

	require.NoError(t, cached.CreateProject(&api.Project{ID: 1, Name: "webapp"}))

	for i := 0; i < 3; i++ {
		_, err := cached.ListProjects()
		require.NoError(t, err)
	}
	assert.Equal(t, 1, backend.listProjectCalls)

	// A new project drops the cached list.
	require.NoError(t, cached.CreateProject(&api.Project{ID: 2, Name: "api"}))
	projects, err := cached.ListProjects()
	require.NoError(t, err)
	assert.Len(t, projects, 2)
	assert.Equal(t, 2, backend.listProjectCalls)
}

func TestCachedStorage_EnvVarLifecycle(t *testing.T) {
	cached, backend, _ := setupCachedStorage(t)

	raw := "8080"
	require.NoError(t, cached.CreateEnvVar(&api.EnvVar{ID: 1, Project: "api", Name: "PORT", RawValue: &raw}))

	v, err := cached.GetEnvVar("api", "PORT")
	require.NoError(t, err)
	assert.Equal(t, "8080", *v.RawValue)
	_, err = cached.GetEnvVar("api", "PORT")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.getEnvVarCalls)

	newRaw := "9090"
	require.NoError(t, cached.UpdateEnvVar(&api.EnvVar{ID: 1, Project: "api", Name: "PORT", RawValue: &newRaw}))

	v, err = cached.GetEnvVar("api", "PORT")
	require.NoError(t, err)
	assert.Equal(t, "9090", *v.RawValue)
	assert.Equal(t, 2, backend.getEnvVarCalls)
}

func TestCachedStorage_SnapshotTTL(t *testing.T) {
	cached, backend, mr := setupCachedStorage(t)

	raw := "8080"
	require.NoError(t, cached.CreateEnvVar(&api.EnvVar{ID: 1, Project: "api", Name: "PORT", RawValue: &raw}))

	ctx := context.Background()
	_, err := cached.ListAllEnvVarsContext(ctx)
	require.NoError(t, err)
	_, err = cached.ListAllEnvVarsContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.listAllCalls)

	// The snapshot key carries the shortest TTL in the config.
	mr.FastForward(2 * time.Minute)
	_, err = cached.ListAllEnvVarsContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.listAllCalls)
}

func TestCachedStorage_ExportLifecycle(t *testing.T) {
	cached, backend, _ := setupCachedStorage(t)

	export := &api.EnvExport{
		ID:             "exp-1",
		Project:        "webapp",
		ExportPath:     "/srv/webapp/.env",
		ResolvedValues: map[string]string{"A": "1"},
		ExportHash:     "abc",
	}
	require.NoError(t, cached.CreateExport(export))

	_, err := cached.GetExport("exp-1")
	require.NoError(t, err)
	_, err = cached.GetExport("exp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.getExportCalls)

	require.NoError(t, cached.DeleteExport("exp-1"))
	_, err = cached.GetExport("exp-1")
	require.Error(t, err)
}

func TestCachedStorage_NotFoundNotCached(t *testing.T) {
	cached, backend, _ := setupCachedStorage(t)

	_, err := cached.GetProject("ghost")
	require.Error(t, err)

	// A later create must be visible: misses are never cached.
	require.NoError(t, cached.CreateProject(&api.Project{ID: 1, Name: "ghost"}))
	p, err := cached.GetProject("ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", p.Name)
	assert.Equal(t, 2, backend.getProjectCalls)
}
