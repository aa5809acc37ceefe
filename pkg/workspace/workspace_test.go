package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/envlink/pkg/resolver"
)

const sampleWorkspace = `
version: v1
projects:
  - name: shared
    description: Common infrastructure values
    variables:
      - name: DB_HOST
        value: db.internal
      - name: DB_PORT
        value: "5432"
  - name: webapp
    variables:
      - name: DB_HOST
        link: shared:DB_HOST
      - name: DATABASE_URL
        concat: 'postgres://"webapp:DB_HOST":"shared:DB_PORT"/app'
        description: Connection string assembled from shared values
`

func writeWorkspace(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func strPtr(s string) *string {
	return &s
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkspace(t, dir, "envlink.yaml", sampleWorkspace)

	ws, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "v1", ws.Version)
	require.Len(t, ws.Projects, 2)
	assert.Equal(t, []string{"shared", "webapp"}, ws.ProjectNames())

	shared := ws.Projects[0]
	require.Len(t, shared.Variables, 2)
	require.NotNil(t, shared.Variables[0].Value)
	assert.Equal(t, "db.internal", *shared.Variables[0].Value)

	webapp := ws.Projects[1]
	assert.Equal(t, "shared:DB_HOST", webapp.Variables[0].Link)
	assert.NotEmpty(t, webapp.Variables[1].Concat)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "envlink.yaml"))
	require.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkspace(t, dir, "envlink.yaml", "projects: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoadFromDir_CandidateOrder(t *testing.T) {
	dir := t.TempDir()
	writeWorkspace(t, dir, "envlink.yml", sampleWorkspace)

	ws, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Len(t, ws.Projects, 2)
}

func TestLoadFromDir_DefaultWhenMissing(t *testing.T) {
	ws, err := LoadFromDir(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "v1", ws.Version)
	assert.Empty(t, ws.Projects)
}

func TestSaveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkspace(t, dir, "envlink.yaml", sampleWorkspace)

	ws, err := Load(path)
	require.NoError(t, err)

	saved := filepath.Join(dir, "saved.yaml")
	require.NoError(t, Save(ws, saved))

	reloaded, err := Load(saved)
	require.NoError(t, err)
	assert.Equal(t, ws, reloaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ws      *Workspace
		wantErr string
	}{
		{
			name: "duplicate project",
			ws: &Workspace{Projects: []Project{
				{Name: "webapp"},
				{Name: "webapp"},
			}},
			wantErr: "duplicate project",
		},
		{
			name: "duplicate variable",
			ws: &Workspace{Projects: []Project{
				{Name: "webapp", Variables: []Variable{
					{Name: "PORT", Value: strPtr("1")},
					{Name: "PORT", Value: strPtr("2")},
				}},
			}},
			wantErr: "duplicate variable",
		},
		{
			name: "no stored form",
			ws: &Workspace{Projects: []Project{
				{Name: "webapp", Variables: []Variable{{Name: "PORT"}}},
			}},
			wantErr: "exactly one of",
		},
		{
			name: "two stored forms",
			ws: &Workspace{Projects: []Project{
				{Name: "webapp", Variables: []Variable{
					{Name: "PORT", Value: strPtr("1"), Link: "shared:PORT"},
				}},
			}},
			wantErr: "exactly one of",
		},
		{
			name: "empty variable name",
			ws: &Workspace{Projects: []Project{
				{Name: "webapp", Variables: []Variable{{Value: strPtr("1")}}},
			}},
			wantErr: "empty name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ws.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToSnapshot_Resolves(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkspace(t, dir, "envlink.yaml", sampleWorkspace)

	ws, err := Load(path)
	require.NoError(t, err)

	result := resolver.Resolve(ws.ToSnapshot(), resolver.ScopeAll())
	require.Empty(t, result.Errors)

	assert.Equal(t, "db.internal", result.Resolved[resolver.VariableID{Project: "webapp", Name: "DB_HOST"}])
	assert.Equal(t, "postgres://db.internal:5432/app",
		result.Resolved[resolver.VariableID{Project: "webapp", Name: "DATABASE_URL"}])
}

func TestEnvVars_StoredForms(t *testing.T) {
	ws := &Workspace{
		Version: "v1",
		Projects: []Project{
			{Name: "webapp", Variables: []Variable{
				{Name: "A", Value: strPtr("x")},
				{Name: "B", Link: "webapp:A"},
				{Name: "C", Concat: `"webapp:A"!`},
			}},
		},
	}

	vars := ws.EnvVars()
	require.Len(t, vars, 3)
	require.NotNil(t, vars[0].RawValue)
	assert.Equal(t, "x", *vars[0].RawValue)
	require.NotNil(t, vars[1].LinkedTo)
	assert.Equal(t, "webapp:A", *vars[1].LinkedTo)
	require.NotNil(t, vars[2].ConcatParts)
	assert.Nil(t, vars[2].RawValue)
}
