package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/envlink/pkg/api"
)

func TestCaptureCommand(t *testing.T) {
	var received ExportRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/projects/webapp/exports", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(api.EnvExport{
			ID:             "exp-123",
			Project:        "webapp",
			ExportPath:     received.ExportPath,
			ResolvedValues: map[string]string{"PORT": "8080"},
			ExportHash:     "abcdef0123456789",
			ExportedAt:     time.Now(),
		})
	}))
	defer server.Close()

	// A temp dir is not a git checkout, so no git metadata is attached.
	dest := t.TempDir() + "/.env"

	output := captureStdout(t, func() {
		require.NoError(t, runCapture([]string{
			"-server", server.URL,
			"-project", "webapp",
			"-path", dest,
		}))
	})

	assert.Equal(t, dest, received.ExportPath)
	assert.False(t, received.IsGitRepo)
	assert.Contains(t, output, "exp-123")
	assert.Contains(t, output, "abcdef012345")
}

func TestCaptureCommand_RequiredFlags(t *testing.T) {
	err := runCapture([]string{"-project", "webapp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")

	err = runCapture([]string{"-path", "/srv/.env"})
	require.Error(t, err)
}

func TestCaptureCommand_ConflictOnUnresolvable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": `project "webapp" has 2 unresolvable variable(s); fix them before exporting`,
		})
	}))
	defer server.Close()

	err := runCapture([]string{
		"-server", server.URL,
		"-project", "webapp",
		"-path", "/srv/.env",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolvable")
}

func TestNormalizeRemote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"git@github.com:acme/webapp.git", "https://github.com/acme/webapp"},
		{"https://github.com/acme/webapp.git", "https://github.com/acme/webapp"},
		{"https://github.com/acme/webapp", "https://github.com/acme/webapp"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeRemote(tt.input))
	}
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abcdef012345", shortHash("abcdef0123456789"))
	assert.Equal(t, "short", shortHash("short"))
}
