package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/envlink/pkg/api"
)

// newMockStorage builds a PostgresStorage over a sqlmock connection.
// With no replicas configured, reads and writes both hit the mock.
func newMockStorage(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := &PostgresStorage{
		conns: &ConnectionManager{
			primary: db,
			log:     logrus.WithField("component", "postgres-test"),
		},
		log: logrus.WithField("component", "postgres-test"),
	}
	return s, mock
}

func strPtr(s string) *string { return &s }

func TestCreateProjectContext(t *testing.T) {
	s, mock := newMockStorage(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO projects`).
		WithArgs("webapp", "frontend service").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(7), now, now))

	project := &api.Project{Name: "webapp", Description: "frontend service"}
	require.NoError(t, s.CreateProjectContext(context.Background(), project))

	assert.Equal(t, int64(7), project.ID)
	assert.Equal(t, now, project.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProjectContext(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMockStorage(t)

		now := time.Now()
		mock.ExpectQuery(`SELECT id, name, description, created_at, updated_at\s+FROM projects`).
			WithArgs("webapp").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
				AddRow(int64(7), "webapp", "frontend service", now, now))

		project, err := s.GetProjectContext(context.Background(), "webapp")
		require.NoError(t, err)
		assert.Equal(t, int64(7), project.ID)
		assert.Equal(t, "webapp", project.Name)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery(`SELECT id, name, description, created_at, updated_at\s+FROM projects`).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetProjectContext(context.Background(), "ghost")
		require.Error(t, err)
		assert.True(t, errors.Is(err, api.ErrNotFound))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListProjectsContext(t *testing.T) {
	s, mock := newMockStorage(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, name, description, created_at, updated_at\s+FROM projects\s+ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
			AddRow(int64(1), "api", "", now, now).
			AddRow(int64(2), "webapp", "", now, now))

	projects, err := s.ListProjectsContext(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "api", projects[0].Name)
	assert.Equal(t, "webapp", projects[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProjectContext_NotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`UPDATE projects`).
		WithArgs("ghost", "new description").
		WillReturnError(sql.ErrNoRows)

	err := s.UpdateProjectContext(context.Background(), &api.Project{Name: "ghost", Description: "new description"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrNotFound))
}

func TestDeleteProjectContext(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectExec(`DELETE FROM projects WHERE name = \$1`).
			WithArgs("webapp").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.DeleteProjectContext(context.Background(), "webapp"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectExec(`DELETE FROM projects WHERE name = \$1`).
			WithArgs("ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.DeleteProjectContext(context.Background(), "ghost")
		assert.True(t, errors.Is(err, api.ErrNotFound))
	})
}

func TestCreateEnvVarContext(t *testing.T) {
	s, mock := newMockStorage(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT id FROM projects WHERE name = \$1`).
		WithArgs("webapp").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(`INSERT INTO env_vars`).
		WithArgs(int64(7), "API_URL", "https://api.example.com", nil, nil, "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(42), now, now))

	v := &api.EnvVar{
		Project:  "webapp",
		Name:     "API_URL",
		RawValue: strPtr("https://api.example.com"),
	}
	require.NoError(t, s.CreateEnvVarContext(context.Background(), v))

	assert.Equal(t, int64(42), v.ID)
	assert.Equal(t, int64(7), v.ProjectID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEnvVarContext_MissingProject(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT id FROM projects WHERE name = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	err := s.CreateEnvVarContext(context.Background(), &api.EnvVar{Project: "ghost", Name: "X", RawValue: strPtr("v")})
	assert.True(t, errors.Is(err, api.ErrNotFound))
}

func TestGetEnvVarContext_NullableColumns(t *testing.T) {
	s, mock := newMockStorage(t)

	now := time.Now()
	cols := []string{
		"id", "project_id", "project", "name",
		"raw_value", "linked_to", "concat_parts",
		"description", "created_at", "updated_at",
	}
	mock.ExpectQuery(`FROM env_vars v\s+JOIN projects p`).
		WithArgs("webapp", "API_URL").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(42), int64(7), "webapp", "API_URL", "https://api.example.com", nil, nil, "", now, now))

	v, err := s.GetEnvVarContext(context.Background(), "webapp", "API_URL")
	require.NoError(t, err)
	require.NotNil(t, v.RawValue)
	assert.Equal(t, "https://api.example.com", *v.RawValue)
	assert.Nil(t, v.LinkedTo)
	assert.Nil(t, v.ConcatParts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEnvVarContext_NotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`UPDATE env_vars`).
		WithArgs("webapp", "GHOST", "v", nil, nil, "").
		WillReturnError(sql.ErrNoRows)

	err := s.UpdateEnvVarContext(context.Background(), &api.EnvVar{
		Project: "webapp", Name: "GHOST", RawValue: strPtr("v"),
	})
	assert.True(t, errors.Is(err, api.ErrNotFound))
}

func TestDeleteEnvVarContext(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectExec(`DELETE FROM env_vars\s+USING projects`).
			WithArgs("webapp", "API_URL").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.DeleteEnvVarContext(context.Background(), "webapp", "API_URL"))
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectExec(`DELETE FROM env_vars\s+USING projects`).
			WithArgs("webapp", "GHOST").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.DeleteEnvVarContext(context.Background(), "webapp", "GHOST")
		assert.True(t, errors.Is(err, api.ErrNotFound))
	})
}

func TestListAllEnvVarsContext(t *testing.T) {
	s, mock := newMockStorage(t)

	now := time.Now()
	cols := []string{
		"id", "project_id", "project", "name",
		"raw_value", "linked_to", "concat_parts",
		"description", "created_at", "updated_at",
	}
	mock.ExpectQuery(`FROM env_vars v\s+JOIN projects p ON v.project_id = p.id\s+ORDER BY p.name, v.name`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), int64(1), "api", "PORT", "8080", nil, nil, "", now, now).
			AddRow(int64(2), int64(2), "webapp", "API_URL", nil, "api:PORT", nil, "", now, now))

	all, err := s.ListAllEnvVarsContext(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "api", all[0].Project)
	require.NotNil(t, all[1].LinkedTo)
	assert.Equal(t, "api:PORT", *all[1].LinkedTo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateExportContext(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT id FROM projects WHERE name = \$1`).
		WithArgs("webapp").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(`INSERT INTO env_exports`).
		WithArgs(
			"exp-1", int64(7), "/srv/webapp/.env", sqlmock.AnyArg(), "abc123", "",
			sqlmock.AnyArg(), "", "main", "deadbeef", "", true,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	export := &api.EnvExport{
		ID:             "exp-1",
		Project:        "webapp",
		ExportPath:     "/srv/webapp/.env",
		ResolvedValues: map[string]string{"API_URL": "https://api.example.com"},
		ExportHash:     "abc123",
		ExportedAt:     time.Now(),
		GitBranch:      "main",
		GitCommitHash:  "deadbeef",
		IsGitRepo:      true,
	}
	require.NoError(t, s.CreateExportContext(context.Background(), export))
	assert.Equal(t, int64(7), export.ProjectID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExportContext(t *testing.T) {
	s, mock := newMockStorage(t)

	now := time.Now()
	cols := []string{
		"id", "project_id", "project", "export_path", "resolved_values",
		"export_hash", "archive_key", "exported_at",
		"git_repo_path", "git_branch", "git_commit_hash", "git_remote_url", "is_git_repo",
	}
	mock.ExpectQuery(`FROM env_exports e\s+JOIN projects p`).
		WithArgs("exp-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("exp-1", int64(7), "webapp", "/srv/webapp/.env", []byte(`{"API_URL":"https://api.example.com"}`),
				"abc123", "", now, "", "main", "deadbeef", "", true))

	export, err := s.GetExportContext(context.Background(), "exp-1")
	require.NoError(t, err)
	assert.Equal(t, "webapp", export.Project)
	assert.Equal(t, map[string]string{"API_URL": "https://api.example.com"}, export.ResolvedValues)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExportContext_NotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`FROM env_exports e\s+JOIN projects p`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetExportContext(context.Background(), "ghost")
	assert.True(t, errors.Is(err, api.ErrNotFound))
}

func TestListExportsContext_ProjectFilter(t *testing.T) {
	s, mock := newMockStorage(t)

	now := time.Now()
	cols := []string{
		"id", "project_id", "project", "export_path", "resolved_values",
		"export_hash", "archive_key", "exported_at",
		"git_repo_path", "git_branch", "git_commit_hash", "git_remote_url", "is_git_repo",
	}
	mock.ExpectQuery(`SELECT id FROM projects WHERE name = \$1`).
		WithArgs("webapp").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(`FROM env_exports e\s+JOIN projects p ON e.project_id = p.id\s+WHERE p.name = \$1`).
		WithArgs("webapp").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("exp-1", int64(7), "webapp", "/srv/webapp/.env", []byte(`{}`),
				"abc123", "", now, "", "", "", "", false))

	exports, err := s.ListExportsContext(context.Background(), "webapp")
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, "exp-1", exports[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
